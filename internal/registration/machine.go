// Package registration drives the private dialogue that collects a
// participant's profile and triggers the draw once the event is full.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"santabot/backend/internal/config"
	"santabot/backend/internal/localization"
	"santabot/backend/internal/lock"
	"santabot/backend/internal/models"
	"santabot/backend/internal/santa"
	"santabot/backend/internal/session"
	"santabot/backend/internal/storage"
)

// ErrNoSession is returned when an operation needs a dialogue the user never
// started.
var ErrNoSession = errors.New("registration: no active session")

// Action is an inline button attached to a prompt.
type Action struct {
	Text string
	Data string
}

// Notifier sends HTML messages to private chats.
type Notifier interface {
	santa.Sender
	Prompt(ctx context.Context, chatID int64, text string, actions ...Action) error
}

// State is the dialogue position of one user.
type State int

const (
	StateIdle State = iota
	StateCollecting
	StateAwaitingFinalize
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateAwaitingFinalize:
		return "awaiting_finalize"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the result of Finalize.
type Outcome int

const (
	// OutcomeIgnored means there was nothing to finalize yet.
	OutcomeIgnored Outcome = iota
	// OutcomeAlreadyRegistered means the profile was persisted earlier.
	OutcomeAlreadyRegistered
	// OutcomeRegistered means the profile was persisted.
	OutcomeRegistered
	// OutcomeDrawn means the profile was persisted and completed the event.
	OutcomeDrawn
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAlreadyRegistered:
		return "already_registered"
	case OutcomeRegistered:
		return "registered"
	case OutcomeDrawn:
		return "drawn"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Machine runs the registration dialogue for every user.
type Machine struct {
	Sessions  session.Store
	Store     storage.Store
	Locker    lock.Locker
	Engine    *santa.Engine
	Notifier  Notifier
	Localizer *localization.Localizer
	Lang      string
}

// NewMachine wires a Machine. A nil locker serialises in process only and a
// nil engine draws from the global random source.
func NewMachine(sessions session.Store, store storage.Store, locker lock.Locker, engine *santa.Engine,
	notifier Notifier, localizer *localization.Localizer, lang string) *Machine {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if engine == nil {
		engine = santa.NewEngine(nil)
	}
	return &Machine{
		Sessions:  sessions,
		Store:     store,
		Locker:    locker,
		Engine:    engine,
		Notifier:  notifier,
		Localizer: localizer,
		Lang:      lang,
	}
}

func (m *Machine) text(key string) string {
	return m.Localizer.GetString(m.Lang, key)
}

// Labels returns the localized fragments used in draw notifications.
func (m *Machine) Labels() santa.Labels {
	fields := make(map[models.Field]string, len(fieldLabelKeys))
	for f, key := range fieldLabelKeys {
		fields[f] = m.text(key)
	}
	return santa.Labels{
		Intro:     m.text(KeyResultTarget),
		RestIntro: m.text(KeyResultWithRest),
		Fields:    fields,
	}
}

// Enter starts, or restarts, the dialogue for id and asks the first
// question. An identity missing any of its ids is ignored.
func (m *Machine) Enter(ctx context.Context, id models.Identity) error {
	if !id.Valid() {
		slog.Warn("registration enter ignored: incomplete identity",
			"user_id", id.ID, "group_chat_id", id.GroupChatID, "private_chat_id", id.PrivateChatID)
		return nil
	}

	if err := m.Sessions.Clear(ctx, id.ID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	if err := m.Sessions.SetAttribute(ctx, id.ID, config.SessionKeyProfile, models.NewIncompleteProfile(id)); err != nil {
		return fmt.Errorf("store profile stub: %w", err)
	}
	if err := m.Sessions.SetAttribute(ctx, id.ID, config.SessionKeyCursor, 0); err != nil {
		return fmt.Errorf("store cursor: %w", err)
	}

	slog.Info("registration started", "user_id", id.ID, "group_chat_id", id.GroupChatID)
	return m.Notifier.Prompt(ctx, id.PrivateChatID, m.text(Steps[0].Prompt))
}

// SubmitAnswer stores text as the answer to the current step and asks the
// next question. Once every step is answered the user is offered the
// register action; later answers are ignored. Without a session it does
// nothing.
func (m *Machine) SubmitAnswer(ctx context.Context, userID int64, text string) error {
	cursor, profile, ok, err := m.load(ctx, userID)
	if err != nil || !ok {
		return err
	}
	if Exhausted(cursor) {
		slog.Debug("registration answer ignored: all steps done", "user_id", userID)
		return nil
	}

	profile.Set(Steps[cursor].Field, text)
	cursor++

	if err := m.Sessions.SetAttribute(ctx, userID, config.SessionKeyProfile, profile); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	if err := m.Sessions.SetAttribute(ctx, userID, config.SessionKeyCursor, cursor); err != nil {
		return fmt.Errorf("store cursor: %w", err)
	}

	if Exhausted(cursor) {
		return m.Notifier.Prompt(ctx, profile.PrivateChatID, m.text(KeyRegisterData),
			Action{Text: m.text(KeyRegisterButton), Data: config.ActionRegister})
	}
	return m.Notifier.Prompt(ctx, profile.PrivateChatID, m.text(Steps[cursor].Prompt))
}

// Finalize persists the collected profile. The duplicate check, the write
// and the completeness check run under a per-chat lock, so a profile is
// stored at most once and the draw runs at most once per event. When the
// stored count reaches the expected count every participant is notified.
func (m *Machine) Finalize(ctx context.Context, userID int64) (Outcome, error) {
	_, stub, ok, err := m.load(ctx, userID)
	if err != nil {
		return OutcomeIgnored, err
	}
	if !ok {
		return OutcomeIgnored, nil
	}
	profile, ok := models.TryComplete(stub)
	if !ok {
		slog.Debug("registration finalize ignored: profile incomplete", "user_id", userID)
		return OutcomeIgnored, nil
	}

	repo := storage.NewEventRepository(m.Store, profile.GroupChatID)

	unlock, err := m.Locker.Acquire(ctx, finalizeLockKey(profile.GroupChatID))
	if err != nil {
		return OutcomeIgnored, fmt.Errorf("acquire finalize lock: %w", err)
	}
	registered, claimed, err := m.persist(ctx, repo, profile)
	unlock()
	if err != nil {
		if registered {
			return OutcomeRegistered, err
		}
		return OutcomeIgnored, err
	}

	if err := m.Sessions.SetAttribute(ctx, userID, config.SessionKeyFinalized, true); err != nil {
		return OutcomeIgnored, fmt.Errorf("mark finalized: %w", err)
	}

	if !registered {
		return OutcomeAlreadyRegistered, m.Notifier.Prompt(ctx, profile.PrivateChatID, m.text(KeyAlreadyExists))
	}

	if !claimed {
		return OutcomeRegistered, m.Notifier.Prompt(ctx, profile.PrivateChatID, m.text(KeyRegistered))
	}

	if err := m.drawClaimed(ctx, repo); err != nil {
		return OutcomeRegistered, err
	}
	return OutcomeDrawn, nil
}

// CheckComplete runs the draw of chatID when its stored registrations
// already match the expected count, e.g. after the count was lowered. It
// reports whether the draw ran. An event is drawn at most once.
func (m *Machine) CheckComplete(ctx context.Context, chatID int64) (bool, error) {
	repo := storage.NewEventRepository(m.Store, chatID)

	unlock, err := m.Locker.Acquire(ctx, finalizeLockKey(chatID))
	if err != nil {
		return false, fmt.Errorf("acquire finalize lock: %w", err)
	}
	claimed, err := m.claimDraw(ctx, repo)
	unlock()
	if err != nil || !claimed {
		return false, err
	}

	if err := m.drawClaimed(ctx, repo); err != nil {
		return false, err
	}
	return true, nil
}

func finalizeLockKey(chatID int64) string {
	return fmt.Sprintf("%s%d", config.FinalizeLockPrefix, chatID)
}

// persist stores profile unless it is already there. It reports whether a
// write happened and whether this caller claimed the draw. Callers hold
// the chat's finalize lock.
func (m *Machine) persist(ctx context.Context, repo *storage.EventRepository, profile models.CompleteProfile) (bool, bool, error) {
	exists, err := repo.HasProfile(ctx, profile.ID)
	if err != nil {
		return false, false, fmt.Errorf("check registration: %w", err)
	}
	if exists {
		slog.Info("registration duplicate", "user_id", profile.ID, "group_chat_id", profile.GroupChatID)
		return false, false, nil
	}
	if err := repo.SaveProfile(ctx, profile); err != nil {
		return false, false, fmt.Errorf("save registration: %w", err)
	}
	slog.Info("registration saved", "user_id", profile.ID, "group_chat_id", profile.GroupChatID)

	claimed, err := m.claimDraw(ctx, repo)
	return true, claimed, err
}

// claimDraw marks the event drawn when its registration count equals the
// expected count and no draw ran yet. Callers hold the chat's finalize lock.
func (m *Machine) claimDraw(ctx context.Context, repo *storage.EventRepository) (bool, error) {
	drawn, err := repo.Drawn(ctx)
	if err != nil {
		return false, fmt.Errorf("read drawn flag: %w", err)
	}
	if drawn {
		return false, nil
	}
	expected, err := repo.ExpectedCount(ctx)
	if err != nil {
		return false, fmt.Errorf("read expected count: %w", err)
	}
	count, err := repo.RegistrationsCount(ctx)
	if err != nil {
		return false, fmt.Errorf("count registrations: %w", err)
	}
	slog.Debug("registration progress", "group_chat_id", repo.ChatID(), "registered", count, "expected", expected)
	if count == 0 || count != expected {
		return false, nil
	}
	if err := repo.MarkDrawn(ctx); err != nil {
		return false, fmt.Errorf("mark drawn: %w", err)
	}
	return true, nil
}

// drawClaimed runs a draw claimed by claimDraw. A draw the engine refuses
// releases the claim so a later change to the event can retry it.
func (m *Machine) drawClaimed(ctx context.Context, repo *storage.EventRepository) error {
	_, err := m.Draw(ctx, repo.ChatID())
	if errors.Is(err, santa.ErrNotEnoughParticipants) {
		if rerr := repo.SetDrawn(ctx, false); rerr != nil {
			return errors.Join(err, fmt.Errorf("release drawn flag: %w", rerr))
		}
	}
	return err
}

// Draw pairs every stored profile of chatID and notifies each giver.
// Delivery failures are returned after every notification was attempted.
// It does not consult or set the drawn flag.
func (m *Machine) Draw(ctx context.Context, chatID int64) (santa.Result, error) {
	profiles, err := storage.NewEventRepository(m.Store, chatID).Registrations(ctx)
	if err != nil {
		return santa.Result{}, fmt.Errorf("load registrations: %w", err)
	}
	res, err := m.Engine.Draw(profiles)
	if err != nil {
		return res, fmt.Errorf("draw chat %d: %w", chatID, err)
	}
	slog.Info("santa draw", "group_chat_id", chatID, "participants", len(profiles), "assignments", len(res.Assignments))
	return res, santa.Deliver(ctx, m.Notifier, santa.Notifications(res.Assignments, m.Labels()))
}

// Leave discards the user's dialogue. Stored registrations are kept.
func (m *Machine) Leave(ctx context.Context, userID int64, privateChatID int64) error {
	if err := m.Sessions.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return m.Notifier.Prompt(ctx, privateChatID, m.text(KeySessionLeft))
}

// StateOf reports where userID is in the dialogue.
func (m *Machine) StateOf(ctx context.Context, userID int64) (State, error) {
	cursor, _, ok, err := m.load(ctx, userID)
	if err != nil || !ok {
		return StateIdle, err
	}
	if !Exhausted(cursor) {
		return StateCollecting, nil
	}
	var finalized bool
	if _, err := m.Sessions.GetAttribute(ctx, userID, config.SessionKeyFinalized, &finalized); err != nil {
		return StateIdle, err
	}
	if finalized {
		return StateFinalized, nil
	}
	return StateAwaitingFinalize, nil
}

// Progress returns the cursor and the profile stub of userID.
func (m *Machine) Progress(ctx context.Context, userID int64) (int, models.IncompleteProfile, error) {
	cursor, profile, ok, err := m.load(ctx, userID)
	if err != nil {
		return 0, profile, err
	}
	if !ok {
		return 0, profile, ErrNoSession
	}
	return cursor, profile, nil
}

func (m *Machine) load(ctx context.Context, userID int64) (int, models.IncompleteProfile, bool, error) {
	var (
		cursor  int
		profile models.IncompleteProfile
	)
	found, err := m.Sessions.GetAttribute(ctx, userID, config.SessionKeyCursor, &cursor)
	if err != nil {
		return 0, profile, false, fmt.Errorf("load cursor: %w", err)
	}
	if !found {
		return 0, profile, false, nil
	}
	found, err = m.Sessions.GetAttribute(ctx, userID, config.SessionKeyProfile, &profile)
	if err != nil {
		return 0, profile, false, fmt.Errorf("load profile: %w", err)
	}
	return cursor, profile, found, nil
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"santabot/backend/internal/models"
)

// EventRepository is the typed view of one chat's event over a Store.
type EventRepository struct {
	store  Store
	chatID int64

	membersCountPath string
	participatedPath string
	registeredPath   string
	drawnPath        string
}

// NewEventRepository binds a repository to chatID.
func NewEventRepository(s Store, chatID int64) *EventRepository {
	return &EventRepository{
		store:            s,
		chatID:           chatID,
		membersCountPath: ChatMembersCountPath(chatID),
		participatedPath: ParticipatedMembersPath(chatID),
		registeredPath:   RegisteredMembersPath(chatID),
		drawnPath:        DrawnPath(chatID),
	}
}

// ChatID returns the chat the repository is bound to.
func (r *EventRepository) ChatID() int64 { return r.chatID }

// SetChat registers the chat and initialises an empty event expecting
// membersCount participants.
func (r *EventRepository) SetChat(ctx context.Context, title string, membersCount int) error {
	if _, err := r.Chat(ctx); err == nil {
		if err := r.removeChatEntry(ctx); err != nil {
			return err
		}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	if err := r.store.Write(ctx, RegisteredChatsPath, models.RegisteredChat{ID: r.chatID, Title: title}, true); err != nil {
		return fmt.Errorf("register chat %d: %w", r.chatID, err)
	}
	if err := r.store.Write(ctx, r.registeredPath, []models.CompleteProfile{}, false); err != nil {
		return fmt.Errorf("init registrations: %w", err)
	}
	if err := r.store.Write(ctx, r.membersCountPath, membersCount, false); err != nil {
		return fmt.Errorf("init members count: %w", err)
	}
	if err := r.store.Write(ctx, r.participatedPath, []models.Participation{}, false); err != nil {
		return fmt.Errorf("init participations: %w", err)
	}
	if err := r.store.Write(ctx, r.drawnPath, false, false); err != nil {
		return fmt.Errorf("init drawn flag: %w", err)
	}
	return nil
}

// DeleteChat removes the chat and every document of its event.
func (r *EventRepository) DeleteChat(ctx context.Context) error {
	if err := r.removeChatEntry(ctx); err != nil {
		return err
	}
	for _, p := range []string{r.registeredPath, r.membersCountPath, r.participatedPath, r.drawnPath} {
		if err := r.store.Delete(ctx, p); err != nil {
			return fmt.Errorf("delete %s: %w", p, err)
		}
	}
	return nil
}

func (r *EventRepository) removeChatEntry(ctx context.Context) error {
	chats, err := Chats(ctx, r.store)
	if err != nil {
		return err
	}
	kept := make([]models.RegisteredChat, 0, len(chats))
	for _, c := range chats {
		if c.ID != r.chatID {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(chats) {
		return nil
	}
	return r.store.Write(ctx, RegisteredChatsPath, kept, false)
}

// AddChatMessageID remembers a message the bot posted in the chat.
func (r *EventRepository) AddChatMessageID(ctx context.Context, messageID int) error {
	chats, err := Chats(ctx, r.store)
	if err != nil {
		return err
	}
	for i := range chats {
		if chats[i].ID == r.chatID {
			chats[i].Messages = append(chats[i].Messages, messageID)
			return r.store.Write(ctx, RegisteredChatsPath, chats, false)
		}
	}
	return ErrNotFound
}

// Chat returns the registered chat entry.
func (r *EventRepository) Chat(ctx context.Context) (models.RegisteredChat, error) {
	var chat models.RegisteredChat
	raw, err := r.store.Find(ctx, RegisteredChatsPath, func(raw json.RawMessage) bool {
		var c models.RegisteredChat
		return json.Unmarshal(raw, &c) == nil && c.ID == r.chatID
	})
	if err != nil {
		return chat, err
	}
	if err := json.Unmarshal(raw, &chat); err != nil {
		return chat, fmt.Errorf("decode chat: %w", err)
	}
	return chat, nil
}

// ExpectedCount returns how many completed profiles trigger the draw.
func (r *EventRepository) ExpectedCount(ctx context.Context) (int, error) {
	var n int
	if err := r.store.Read(ctx, r.membersCountPath, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdateExpectedCount overwrites the expected participant count.
func (r *EventRepository) UpdateExpectedCount(ctx context.Context, n int) error {
	return r.store.Write(ctx, r.membersCountPath, n, false)
}

// Drawn reports whether the event's draw already ran.
func (r *EventRepository) Drawn(ctx context.Context) (bool, error) {
	var drawn bool
	if err := r.store.Read(ctx, r.drawnPath, &drawn); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return drawn, nil
}

// MarkDrawn records that the event's draw ran.
func (r *EventRepository) MarkDrawn(ctx context.Context) error {
	return r.SetDrawn(ctx, true)
}

// SetDrawn overwrites the drawn flag.
func (r *EventRepository) SetDrawn(ctx context.Context, drawn bool) error {
	return r.store.Write(ctx, r.drawnPath, drawn, false)
}

// Registrations returns the completed profiles in insertion order.
func (r *EventRepository) Registrations(ctx context.Context) ([]models.CompleteProfile, error) {
	var profiles []models.CompleteProfile
	if err := r.store.Read(ctx, r.registeredPath, &profiles); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return profiles, nil
}

// RegistrationsCount returns the number of completed profiles.
func (r *EventRepository) RegistrationsCount(ctx context.Context) (int, error) {
	return r.store.Count(ctx, r.registeredPath)
}

// Profile returns the completed profile of userID.
func (r *EventRepository) Profile(ctx context.Context, userID int64) (models.CompleteProfile, error) {
	var p models.CompleteProfile
	raw, err := r.store.Find(ctx, r.registeredPath, func(raw json.RawMessage) bool {
		var c models.CompleteProfile
		return json.Unmarshal(raw, &c) == nil && c.ID == userID
	})
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode profile: %w", err)
	}
	return p, nil
}

// HasProfile reports whether userID already registered.
func (r *EventRepository) HasProfile(ctx context.Context, userID int64) (bool, error) {
	_, err := r.Profile(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// SaveProfile appends a completed profile.
func (r *EventRepository) SaveProfile(ctx context.Context, p models.CompleteProfile) error {
	return r.store.Write(ctx, r.registeredPath, p, true)
}

// RemoveProfile deletes userID's completed profile if present.
func (r *EventRepository) RemoveProfile(ctx context.Context, userID int64) error {
	profiles, err := r.Registrations(ctx)
	if err != nil {
		return err
	}
	kept := make([]models.CompleteProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.ID != userID {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(profiles) {
		return nil
	}
	return r.store.Write(ctx, r.registeredPath, kept, false)
}

// Participations returns all poll answers.
func (r *EventRepository) Participations(ctx context.Context) ([]models.Participation, error) {
	var ps []models.Participation
	if err := r.store.Read(ctx, r.participatedPath, &ps); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ps, nil
}

// Participation returns userID's poll answer.
func (r *EventRepository) Participation(ctx context.Context, userID int64) (models.Participation, error) {
	var p models.Participation
	raw, err := r.store.Find(ctx, r.participatedPath, func(raw json.RawMessage) bool {
		var c models.Participation
		return json.Unmarshal(raw, &c) == nil && c.UserID == userID
	})
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode participation: %w", err)
	}
	return p, nil
}

// SetParticipation appends a poll answer.
func (r *EventRepository) SetParticipation(ctx context.Context, p models.Participation) error {
	return r.store.Write(ctx, r.participatedPath, p, true)
}

// Chats lists every registered chat.
func Chats(ctx context.Context, s Store) ([]models.RegisteredChat, error) {
	var chats []models.RegisteredChat
	if err := s.Read(ctx, RegisteredChatsPath, &chats); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return chats, nil
}

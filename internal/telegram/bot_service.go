// Package telegram handles the integration with the Telegram Bot API.
// It receives updates, runs the group poll and routes private messages to
// the registration machine.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"santabot/backend/internal/config"
	"santabot/backend/internal/localization"
	"santabot/backend/internal/lock"
	"santabot/backend/internal/models"
	"santabot/backend/internal/registration"
	"santabot/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	statusAdministrator = "administrator"

	commandStart = "start"
	commandLeave = "leave"
)

// BotService is responsible for receiving Telegram updates and routing them.
type BotService struct {
	Client    *Client
	Machine   *registration.Machine
	Store     storage.Store
	Locker    lock.Locker
	Localizer *localization.Localizer
	Lang      string
	// BotID identifies membership updates about the bot itself.
	BotID int64
}

// NewBotService creates a new BotService. The machine's store, locker and
// localizer are shared.
func NewBotService(client *Client, machine *registration.Machine, botID int64) *BotService {
	return &BotService{
		Client:    client,
		Machine:   machine,
		Store:     machine.Store,
		Locker:    machine.Locker,
		Localizer: machine.Localizer,
		Lang:      machine.Lang,
		BotID:     botID,
	}
}

func (s *BotService) text(key string) string {
	return s.Localizer.GetString(s.Lang, key)
}

// Run handles updates until ctx is done or the channel closes.
func (s *BotService) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	slog.Info("telegram bot listening for updates")
	for {
		select {
		case <-ctx.Done():
			slog.Info("telegram bot stopped", "reason", ctx.Err())
			return
		case update, ok := <-updates:
			if !ok {
				slog.Info("telegram update channel closed")
				return
			}
			s.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate routes a single update.
func (s *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.MyChatMember != nil:
		s.handleMembership(ctx, update.MyChatMember)
	case update.CallbackQuery != nil:
		s.handleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil:
		if update.Message.Chat.IsPrivate() {
			s.handlePrivateMessage(ctx, update.Message)
		}
	}
}

// handleMembership starts an event when the bot becomes an administrator
// of a group and closes it when the rights are taken away.
func (s *BotService) handleMembership(ctx context.Context, m *tgbotapi.ChatMemberUpdated) {
	if m.NewChatMember.User == nil || m.NewChatMember.User.ID != s.BotID {
		return
	}
	if !m.Chat.IsGroup() && !m.Chat.IsSuperGroup() {
		return
	}

	oldAdmin := m.OldChatMember.Status == statusAdministrator
	newAdmin := m.NewChatMember.Status == statusAdministrator
	switch {
	case newAdmin && !oldAdmin:
		if err := s.startEvent(ctx, m.Chat.ID, m.Chat.Title); err != nil {
			slog.Error("failed to start event", "chat_id", m.Chat.ID, "error", err)
		}
	case oldAdmin && !newAdmin:
		if err := s.stopEvent(ctx, m.Chat.ID); err != nil {
			slog.Error("failed to stop event", "chat_id", m.Chat.ID, "error", err)
		}
	}
}

func (s *BotService) startEvent(ctx context.Context, chatID int64, title string) error {
	members, err := s.Client.MembersCount(ctx, chatID)
	if err != nil {
		return err
	}
	// The bot itself is not a participant.
	expected := max(members-1, 0)

	repo := storage.NewEventRepository(s.Store, chatID)
	if err := repo.SetChat(ctx, title, expected); err != nil {
		return err
	}
	slog.Info("event started", "chat_id", chatID, "title", title, "expected", expected)

	if _, err := s.Client.Post(ctx, chatID, s.text("chat_welcome_message")); err != nil {
		return err
	}
	pollID, err := s.Client.Post(ctx, chatID, pollTitle(s.text("chat_poll_title"), 0, expected), s.pollActions()...)
	if err != nil {
		return err
	}
	return repo.AddChatMessageID(ctx, pollID)
}

func (s *BotService) stopEvent(ctx context.Context, chatID int64) error {
	if _, err := s.Client.Post(ctx, chatID, s.text("chat_goodbye_message")); err != nil {
		// The bot may already be unable to post here.
		slog.Warn("goodbye message not sent", "chat_id", chatID, "error", err)
	}
	if err := storage.NewEventRepository(s.Store, chatID).DeleteChat(ctx); err != nil {
		return err
	}
	slog.Info("event closed", "chat_id", chatID)
	return nil
}

func (s *BotService) pollActions() []registration.Action {
	return []registration.Action{
		{Text: s.text("poll_yes"), Data: config.ActionPollYes},
		{Text: s.text("poll_no"), Data: config.ActionPollNo},
	}
}

func (s *BotService) handleCallbackQuery(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil {
		return
	}

	switch data := cq.Data; {
	case data == config.ActionPollYes || data == config.ActionPollNo:
		s.handleVote(ctx, cq)
	case data == config.ActionRegister:
		s.acknowledge(ctx, cq)
		s.handleRegister(ctx, cq)
	default:
		s.acknowledge(ctx, cq)
		if chatID, ok := parseChosenChat(data); ok {
			s.handleChooseChat(ctx, cq, chatID)
			return
		}
		slog.Debug("unknown callback", "data", data, "user_id", cq.From.ID)
	}
}

func (s *BotService) acknowledge(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if err := s.Client.Answer(ctx, cq.ID, ""); err != nil {
		slog.Warn("failed to send callback response", "error", err)
	}
}

// handleVote records one poll answer per user and keeps the poll title in
// step. Once everyone answered the poll is closed and the expected count is
// fixed to the number of "yes" answers. Votes from chats without a running
// event are dropped.
func (s *BotService) handleVote(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	chatID := cq.Message.Chat.ID
	if !cq.Message.Chat.IsGroup() && !cq.Message.Chat.IsSuperGroup() {
		s.acknowledge(ctx, cq)
		return
	}
	repo := storage.NewEventRepository(s.Store, chatID)
	if _, err := repo.Chat(ctx); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.Debug("vote ignored: no event", "chat_id", chatID, "user_id", cq.From.ID)
		} else {
			slog.Error("failed to read chat", "chat_id", chatID, "error", err)
		}
		s.acknowledge(ctx, cq)
		return
	}

	unlock, err := s.Locker.Acquire(ctx, fmt.Sprintf("%s%d", config.PollLockPrefix, chatID))
	if err != nil {
		slog.Error("failed to lock poll", "chat_id", chatID, "error", err)
		return
	}
	defer unlock()

	_, err = repo.Participation(ctx, cq.From.ID)
	switch {
	case err == nil:
		if err := s.Client.Answer(ctx, cq.ID, s.text("registered_exist_notification")); err != nil {
			slog.Warn("failed to send callback response", "error", err)
		}
		return
	case !errors.Is(err, storage.ErrNotFound):
		slog.Error("failed to read participation", "chat_id", chatID, "user_id", cq.From.ID, "error", err)
		return
	}

	vote := models.Participation{UserID: cq.From.ID, IsParticipates: cq.Data == config.ActionPollYes}
	if err := repo.SetParticipation(ctx, vote); err != nil {
		slog.Error("failed to save participation", "chat_id", chatID, "user_id", cq.From.ID, "error", err)
		return
	}
	if err := s.Client.Answer(ctx, cq.ID, s.text("registered_notification")); err != nil {
		slog.Warn("failed to send callback response", "error", err)
	}
	slog.Info("poll answer", "chat_id", chatID, "user_id", cq.From.ID, "participates", vote.IsParticipates)

	if err := s.refreshPoll(ctx, repo, cq.Message.MessageID); err != nil {
		slog.Error("failed to update poll", "chat_id", chatID, "error", err)
	}
}

func (s *BotService) refreshPoll(ctx context.Context, repo *storage.EventRepository, messageID int) error {
	expected, err := repo.ExpectedCount(ctx)
	if err != nil {
		return err
	}
	votes, err := repo.Participations(ctx)
	if err != nil {
		return err
	}

	if len(votes) < expected {
		return s.Client.Edit(ctx, repo.ChatID(), messageID,
			pollTitle(s.text("chat_poll_title"), len(votes), expected), s.pollActions()...)
	}

	yes := 0
	for _, v := range votes {
		if v.IsParticipates {
			yes++
		}
	}
	if err := repo.UpdateExpectedCount(ctx, yes); err != nil {
		return err
	}
	slog.Info("poll closed", "chat_id", repo.ChatID(), "votes", len(votes), "participants", yes)
	if err := s.Client.Edit(ctx, repo.ChatID(), messageID, s.text("chat_all_registered")); err != nil {
		return err
	}

	// Everyone who said yes may have registered before the last vote.
	_, err = s.Machine.CheckComplete(ctx, repo.ChatID())
	return err
}

// handleChooseChat enters the dialogue for users who answered "yes" in the
// chosen chat and sends everyone else back to the chat list.
func (s *BotService) handleChooseChat(ctx context.Context, cq *tgbotapi.CallbackQuery, groupChatID int64) {
	privateChatID := cq.Message.Chat.ID
	p, err := storage.NewEventRepository(s.Store, groupChatID).Participation(ctx, cq.From.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.offerChats(ctx, privateChatID, s.text("private_chat_try_again"))
		return
	case err != nil:
		s.fail(ctx, privateChatID, "failed to read participation", err)
		return
	case !p.IsParticipates:
		s.offerChats(ctx, privateChatID, s.text("private_chat_try_again_non_participant"))
		return
	}

	id := models.Identity{ID: cq.From.ID, GroupChatID: groupChatID, PrivateChatID: privateChatID}
	if err := s.Machine.Enter(ctx, id); err != nil {
		s.fail(ctx, privateChatID, "failed to start registration", err)
	}
}

func (s *BotService) handleRegister(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	out, err := s.Machine.Finalize(ctx, cq.From.ID)
	if err != nil {
		s.fail(ctx, cq.Message.Chat.ID, "failed to finalize registration", err)
		return
	}
	slog.Debug("finalize", "user_id", cq.From.ID, "outcome", out)
}

func (s *BotService) handlePrivateMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case commandStart:
			s.handleStart(ctx, msg.Chat.ID)
		case commandLeave:
			if err := s.Machine.Leave(ctx, msg.From.ID, msg.Chat.ID); err != nil {
				s.fail(ctx, msg.Chat.ID, "failed to leave registration", err)
			}
		}
		return
	}

	if msg.Text == "" {
		return
	}
	if err := s.Machine.SubmitAnswer(ctx, msg.From.ID, msg.Text); err != nil {
		s.fail(ctx, msg.Chat.ID, "failed to store answer", err)
	}
}

func (s *BotService) handleStart(ctx context.Context, chatID int64) {
	if err := s.Client.Prompt(ctx, chatID, s.text(registration.KeyWelcome)); err != nil {
		slog.Error("failed to send welcome", "chat_id", chatID, "error", err)
		return
	}
	s.offerChats(ctx, chatID, fmt.Sprintf("<b>%s</b> %s",
		s.text(registration.KeyWelcomeStep), s.text("private_chat_welcome_choose_title")))
}

// offerChats sends text with a keyboard of every registered chat.
func (s *BotService) offerChats(ctx context.Context, chatID int64, text string) {
	chats, err := storage.Chats(ctx, s.Store)
	if err != nil {
		s.fail(ctx, chatID, "failed to list chats", err)
		return
	}
	if len(chats) == 0 {
		text = s.text("private_chat_no_chats")
	}
	if err := s.Client.Prompt(ctx, chatID, text, chooseChatActions(chats)...); err != nil {
		slog.Error("failed to offer chats", "chat_id", chatID, "error", err)
	}
}

// fail logs err and tells the user something went wrong.
func (s *BotService) fail(ctx context.Context, chatID int64, msg string, err error) {
	slog.Error(msg, "chat_id", chatID, "error", err)
	if err := s.Client.Prompt(ctx, chatID, s.text(registration.KeyGenericError)); err != nil {
		slog.Error("failed to send error notice", "chat_id", chatID, "error", err)
	}
}

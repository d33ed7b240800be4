package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"santabot/backend/internal/registration"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tidwall/gjson"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// Connect authorizes token against the Bot API.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	slog.Info("authorized on telegram", "account", bot.Self.UserName)
	return bot, nil
}

// Client sends HTML messages through the Bot API. It implements
// registration.Notifier.
type Client struct {
	API API
}

// NewClient wraps api.
func NewClient(api API) *Client {
	return &Client{API: api}
}

// Prompt sends text to chatID with one button per action.
func (c *Client) Prompt(ctx context.Context, chatID int64, text string, actions ...registration.Action) error {
	_, err := c.Post(ctx, chatID, text, actions...)
	return err
}

// SendPrivate sends a plain HTML message.
func (c *Client) SendPrivate(ctx context.Context, chatID int64, text string) error {
	_, err := c.Post(ctx, chatID, text)
	return err
}

// Post sends text and returns the id of the posted message.
func (c *Client) Post(_ context.Context, chatID int64, text string, actions ...registration.Action) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(actions) > 0 {
		msg.ReplyMarkup = inlineKeyboard(actions)
	}
	sent, err := c.API.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// Edit replaces the text of a posted message. Without actions the inline
// keyboard is removed.
func (c *Client) Edit(_ context.Context, chatID int64, messageID int, text string, actions ...registration.Action) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if len(actions) > 0 {
		kb := inlineKeyboard(actions)
		edit.ReplyMarkup = &kb
	}
	if _, err := c.API.Send(edit); err != nil {
		return fmt.Errorf("edit %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

// Answer acknowledges a callback query, optionally with a toast.
func (c *Client) Answer(_ context.Context, callbackID, text string) error {
	if _, err := c.API.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// MembersCount returns the number of members of chatID, bots included.
func (c *Client) MembersCount(_ context.Context, chatID int64) (int, error) {
	resp, err := c.API.MakeRequest("getChatMemberCount", tgbotapi.Params{
		"chat_id": strconv.FormatInt(chatID, 10),
	})
	if err != nil {
		return 0, fmt.Errorf("members count of %d: %w", chatID, err)
	}
	result := gjson.ParseBytes(resp.Result)
	if result.Type != gjson.Number {
		return 0, fmt.Errorf("members count of %d: unexpected result %q", chatID, result.Raw)
	}
	return int(result.Int()), nil
}

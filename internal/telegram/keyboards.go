package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"santabot/backend/internal/config"
	"santabot/backend/internal/models"
	"santabot/backend/internal/registration"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// inlineKeyboard lays out one button per row.
func inlineKeyboard(actions []registration.Action) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(actions))
	for _, a := range actions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(a.Text, a.Data)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func chooseChatActions(chats []models.RegisteredChat) []registration.Action {
	actions := make([]registration.Action, 0, len(chats))
	for _, c := range chats {
		actions = append(actions, registration.Action{
			Text: c.Title,
			Data: config.ActionChoosePrefix + strconv.FormatInt(c.ID, 10),
		})
	}
	return actions
}

// parseChosenChat extracts the chat id from a "choose chat" callback.
func parseChosenChat(data string) (int64, bool) {
	raw, ok := strings.CutPrefix(data, config.ActionChoosePrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func pollTitle(title string, voted, total int) string {
	return fmt.Sprintf("%s (%d/%d)", title, voted, total)
}

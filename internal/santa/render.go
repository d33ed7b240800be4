package santa

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"santabot/backend/internal/models"
)

// Labels are the message fragments used to render notifications.
type Labels struct {
	// Intro opens a regular notification.
	Intro string
	// RestIntro opens the extra notification about the rest participant.
	RestIntro string
	// Fields maps each public field to its line label.
	Fields map[models.Field]string
}

// Notification is a private message to a giver about their recipient.
type Notification struct {
	GiverID int64
	ChatID  int64
	Text    string
	Kind    Kind
}

// Sender delivers a private HTML message.
type Sender interface {
	SendPrivate(ctx context.Context, chatID int64, text string) error
}

// RenderProfile renders the public fields as "label value" lines. Values are
// HTML-escaped.
func RenderProfile(p models.CompleteProfile, labels Labels) string {
	lines := make([]string, 0, len(models.PublicFields))
	for _, fv := range p.Public() {
		label, ok := labels.Fields[fv.Field]
		if !ok {
			label = string(fv.Field)
		}
		lines = append(lines, label+" "+html.EscapeString(fv.Value))
	}
	return strings.Join(lines, "\n")
}

// Notifications renders one message per assignment, addressed to the giver.
func Notifications(assignments []Assignment, labels Labels) []Notification {
	out := make([]Notification, 0, len(assignments))
	for _, a := range assignments {
		intro := labels.Intro
		if a.Kind == KindRest {
			intro = labels.RestIntro
		}
		out = append(out, Notification{
			GiverID: a.Giver.ID,
			ChatID:  a.Giver.PrivateChatID,
			Text:    intro + "\n" + RenderProfile(a.Recipient, labels),
			Kind:    a.Kind,
		})
	}
	return out
}

// Deliver sends every notification once. Failures do not stop the remaining
// sends; they are returned joined.
func Deliver(ctx context.Context, s Sender, notes []Notification) error {
	var errs []error
	for _, n := range notes {
		if err := s.SendPrivate(ctx, n.ChatID, n.Text); err != nil {
			slog.Error("santa notification failed", "giver_id", n.GiverID, "chat_id", n.ChatID, "error", err)
			errs = append(errs, fmt.Errorf("notify %d: %w", n.GiverID, err))
		}
	}
	return errors.Join(errs...)
}

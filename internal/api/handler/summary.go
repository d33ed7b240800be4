package handler

import (
	"context"

	"santabot/backend/internal/storage"
)

// Summarize collects the counters of the event behind repo. It returns
// storage.ErrNotFound for unknown chats.
func Summarize(ctx context.Context, repo *storage.EventRepository) (EventSummary, error) {
	chat, err := repo.Chat(ctx)
	if err != nil {
		return EventSummary{}, err
	}
	s := EventSummary{ChatID: chat.ID, Title: chat.Title}

	if s.Expected, err = repo.ExpectedCount(ctx); err != nil {
		return s, err
	}
	if s.Registered, err = repo.RegistrationsCount(ctx); err != nil {
		return s, err
	}
	votes, err := repo.Participations(ctx)
	if err != nil {
		return s, err
	}
	s.Votes = len(votes)
	for _, v := range votes {
		if v.IsParticipates {
			s.Yes++
		}
	}
	return s, nil
}

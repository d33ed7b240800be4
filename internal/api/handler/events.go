package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"santabot/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// EventSummary is the admin view of one chat's event.
type EventSummary struct {
	ChatID     int64  `json:"chat_id"`
	Title      string `json:"title"`
	Expected   int    `json:"expected"`
	Registered int    `json:"registered"`
	Votes      int    `json:"votes"`
	Yes        int    `json:"yes"`
}

type expectedRequest struct {
	Count *int `json:"count" binding:"required"`
}

func chatIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return 0, false
	}
	return id, true
}

// ListEvents returns every registered chat.
func (h *Handler) ListEvents(c *gin.Context) {
	chats, err := storage.Chats(c.Request.Context(), h.Store)
	if err != nil {
		h.internalError(c, "list chats", err)
		return
	}
	if chats == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, chats)
}

// GetEvent returns the counters of one event.
func (h *Handler) GetEvent(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	summary, err := Summarize(c.Request.Context(), storage.NewEventRepository(h.Store, chatID))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	if err != nil {
		h.internalError(c, "summarize event", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// SetExpected overwrites the number of registrations that triggers the draw.
func (h *Handler) SetExpected(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	var req expectedRequest
	if err := c.ShouldBindJSON(&req); err != nil || *req.Count < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a non-negative integer"})
		return
	}

	repo := storage.NewEventRepository(h.Store, chatID)
	if _, err := repo.Chat(c.Request.Context()); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		h.internalError(c, "load event", err)
		return
	}
	if err := repo.UpdateExpectedCount(c.Request.Context(), *req.Count); err != nil {
		h.internalError(c, "update expected count", err)
		return
	}
	slog.Info("expected count updated by admin", "chat_id", chatID, "count", *req.Count)

	drawn := false
	if h.Completer != nil {
		var err error
		if drawn, err = h.Completer.CheckComplete(c.Request.Context(), chatID); err != nil {
			h.internalError(c, "check event completion", err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "expected": *req.Count, "drawn": drawn})
}

// ResetEvent deletes the event and all its registrations.
func (h *Handler) ResetEvent(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	repo := storage.NewEventRepository(h.Store, chatID)
	if _, err := repo.Chat(c.Request.Context()); errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	if err := repo.DeleteChat(c.Request.Context()); err != nil {
		h.internalError(c, "delete event", err)
		return
	}
	slog.Info("event reset by admin", "chat_id", chatID)
	c.Status(http.StatusNoContent)
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	slog.Error("admin api failure", "op", op, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

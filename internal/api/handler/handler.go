// Package handler serves the admin HTTP API for inspecting and correcting
// events.
package handler

import (
	"context"
	"net/http"

	"santabot/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// Completer runs an event's draw once its registrations match the expected
// count.
type Completer interface {
	CheckComplete(ctx context.Context, chatID int64) (bool, error)
}

// Handler holds the event store, the draw trigger and the admin token secret.
type Handler struct {
	Store     storage.Store
	Completer Completer
	Secret    []byte
}

// NewHandler creates a Handler. A nil completer never triggers a draw.
func NewHandler(s storage.Store, completer Completer, secret string) *Handler {
	return &Handler{Store: s, Completer: completer, Secret: []byte(secret)}
}

// NewRouter registers every route on a fresh gin engine.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api", h.RequireAdmin())
	api.GET("/events", h.ListEvents)
	api.GET("/events/:chat_id", h.GetEvent)
	api.PUT("/events/:chat_id/expected", h.SetExpected)
	api.DELETE("/events/:chat_id", h.ResetEvent)
	return r
}

// Healthz reports that the process is serving.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Package api serves the HTTP surface of the relay: health, the list of
// running fetches, cancellation by id and the chat webhook.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytget/yt-relay/internal/registry"
)

// Tasks is the registry view the API needs
type Tasks interface {
	List() []registry.Entry
	Lookup(taskID string) (registry.Handle, bool)
	Cancel(taskID string) bool
}

// Dispatcher consumes webhook updates
type Dispatcher interface {
	Dispatch(ctx context.Context, u tgbotapi.Update)
}

// TaskView is the JSON form of a running fetch
type TaskView struct {
	ID           string    `json:"id"`
	Owner        int64     `json:"owner"`
	Status       string    `json:"status"`
	Percent      float64   `json:"percent"`
	Downloaded   int64     `json:"downloaded_bytes"`
	Total        int64     `json:"total_bytes"`
	Speed        string    `json:"speed,omitempty"`
	ETA          string    `json:"eta"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Handler holds the dependencies of the routes
type Handler struct {
	tasks   Tasks
	updates Dispatcher
	base    context.Context
	logger  *slog.Logger
}

// NewHandler creates a Handler. updates may be nil when webhook mode is off.
// Webhook updates are handled under base so they outlive the HTTP request.
func NewHandler(base context.Context, tasks Tasks, updates Dispatcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{tasks: tasks, updates: updates, base: base, logger: logger}
}

// Health reports liveness and the number of running fetches
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "tasks": len(h.tasks.List())})
}

// ListTasks returns every registered fetch, oldest first
func (h *Handler) ListTasks(c *gin.Context) {
	entries := h.tasks.List()
	views := make([]TaskView, 0, len(entries))
	for _, e := range entries {
		views = append(views, view(e))
	}
	c.JSON(http.StatusOK, views)
}

// CancelTask raises the cancellation flag of a running fetch
func (h *Handler) CancelTask(c *gin.Context) {
	taskID := c.Param("id")
	if _, ok := h.tasks.Lookup(taskID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if !h.tasks.Cancel(taskID) {
		c.JSON(http.StatusConflict, gin.H{"error": "Task already completed or cancelled"})
		return
	}
	h.logger.Info("task cancelled through api", "task", taskID)
	c.JSON(http.StatusAccepted, gin.H{"message": "Cancelling", "task_id": taskID})
}

// Webhook accepts one update pushed by the chat platform
func (h *Handler) Webhook(c *gin.Context) {
	if h.updates == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Webhook disabled"})
		return
	}
	var u tgbotapi.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update: " + err.Error()})
		return
	}
	h.updates.Dispatch(h.base, u)
	c.Status(http.StatusOK)
}

func view(e registry.Entry) TaskView {
	snap := e.Handle.Progress()
	return TaskView{
		ID:           e.ID,
		Owner:        e.Handle.Owner(),
		Status:       e.Handle.Status().String(),
		Percent:      snap.Percent,
		Downloaded:   snap.DownloadedBytes,
		Total:        snap.TotalBytes,
		Speed:        snap.GetSpeedString(),
		ETA:          snap.GetETAString(),
		RegisteredAt: e.RegisteredAt,
	}
}

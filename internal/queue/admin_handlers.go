// Package queue exposes the background task queue to admins.
package queue

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/notify"
)

// DefaultQueue is the asynq queue used when none is configured.
const DefaultQueue = "default"

// Inspector is the subset of *asynq.Inspector the handlers use.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListRetryTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunTask(queue, id string) error
	RunAllArchivedTasks(queue string) (int, error)
}

// AdminHandler lists failed notification tasks and replays them.
type AdminHandler struct {
	Inspector Inspector
	Queue     string
	PageSize  int
	Logger    zerolog.Logger
}

type failedTask struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	Kind        string     `json:"kind,omitempty"`
	QuoteID     string     `json:"quoteId,omitempty"`
	EventID     string     `json:"eventId,omitempty"`
	Retried     int        `json:"retried"`
	MaxRetry    int        `json:"maxRetry"`
	LastError   string     `json:"lastError,omitempty"`
	LastFailed  *time.Time `json:"lastFailedAt,omitempty"`
	NextAttempt *time.Time `json:"nextAttemptAt,omitempty"`
}

type replayRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

// ListFailed returns archived and retrying tasks. ?state=archived|retry narrows
// the listing; page is 1-based.
func (h *AdminHandler) ListFailed(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "task queue unavailable", nil)
		return
	}
	state := strings.TrimSpace(r.URL.Query().Get("state"))
	if state != "" && state != "archived" && state != "retry" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "state must be archived or retry", nil)
		return
	}
	page := parsePage(r)
	opts := []asynq.ListOption{asynq.Page(page), asynq.PageSize(h.pageSize())}

	items := make([]failedTask, 0)
	if state == "" || state == "archived" {
		tasks, err := h.Inspector.ListArchivedTasks(h.queue(), opts...)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			h.internal(w, err)
			return
		}
		items = appendTasks(items, tasks)
	}
	if state == "" || state == "retry" {
		tasks, err := h.Inspector.ListRetryTasks(h.queue(), opts...)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			h.internal(w, err)
			return
		}
		items = appendTasks(items, tasks)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items, "page": page})
}

// Replay runs archived tasks again, either by id or all at once.
func (h *AdminHandler) Replay(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "task queue unavailable", nil)
		return
	}
	var req replayRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	ids := uniqueStrings(req.IDs)
	if len(ids) == 0 && !req.All {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "ids or all required", nil)
		return
	}

	if req.All {
		n, err := h.Inspector.RunAllArchivedTasks(h.queue())
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			h.internal(w, err)
			return
		}
		h.Logger.Info().Int("count", n).Msg("archived tasks replayed")
		common.JSON(w, http.StatusOK, map[string]any{"replayed": n})
		return
	}

	replayed := make([]string, 0, len(ids))
	failed := make(map[string]string)
	for _, id := range ids {
		if err := h.Inspector.RunTask(h.queue(), id); err != nil {
			if errors.Is(err, asynq.ErrTaskNotFound) {
				failed[id] = "not found"
				continue
			}
			failed[id] = err.Error()
			continue
		}
		replayed = append(replayed, id)
	}
	h.Logger.Info().Int("replayed", len(replayed)).Int("failed", len(failed)).Msg("tasks replayed")
	common.JSON(w, http.StatusOK, map[string]any{"replayed": replayed, "failed": failed})
}

// Stats reports queue sizes.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "task queue unavailable", nil)
		return
	}
	info, err := h.Inspector.GetQueueInfo(h.queue())
	if errors.Is(err, asynq.ErrQueueNotFound) {
		common.JSON(w, http.StatusOK, map[string]any{"queue": h.queue(), "size": 0})
		return
	}
	if err != nil {
		h.internal(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"queue":     info.Queue,
		"size":      info.Size,
		"pending":   info.Pending,
		"active":    info.Active,
		"scheduled": info.Scheduled,
		"retry":     info.Retry,
		"archived":  info.Archived,
		"processed": info.Processed,
		"failed":    info.Failed,
		"paused":    info.Paused,
	})
}

func (h *AdminHandler) internal(w http.ResponseWriter, err error) {
	h.Logger.Error().Err(err).Msg("inspect task queue")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "task queue error", nil)
}

func (h *AdminHandler) queue() string {
	if h.Queue == "" {
		return DefaultQueue
	}
	return h.Queue
}

func (h *AdminHandler) pageSize() int {
	if h.PageSize <= 0 {
		return 50
	}
	return h.PageSize
}

// appendTasks summarises tasks without echoing payloads, which can carry
// approval tokens.
func appendTasks(dst []failedTask, tasks []*asynq.TaskInfo) []failedTask {
	for _, t := range tasks {
		item := failedTask{
			ID:        t.ID,
			State:     t.State.String(),
			Retried:   t.Retried,
			MaxRetry:  t.MaxRetry,
			LastError: t.LastErr,
		}
		if t.Type == notify.TypeQuoteEmail {
			var payload notify.EmailTask
			if err := json.Unmarshal(t.Payload, &payload); err == nil {
				item.Kind = string(payload.Kind)
				item.QuoteID = payload.QuoteID
				item.EventID = payload.EventID
			}
		}
		if !t.LastFailedAt.IsZero() {
			at := t.LastFailedAt
			item.LastFailed = &at
		}
		if !t.NextProcessAt.IsZero() {
			at := t.NextProcessAt
			item.NextAttempt = &at
		}
		dst = append(dst, item)
	}
	return dst
}

func parsePage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

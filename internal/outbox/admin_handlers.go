package outbox

import (
	"errors"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-liquidacion/internal/common"
)

// AdminHandler exposes dispatcher diagnostics: recent failures and queue depth.
type AdminHandler struct {
	Dispatcher *Dispatcher
	Redis      *redis.Client
	Queue      string
	PageSize   int
}

// Failures returns recent dispatch failures, newest first, filtered by kind.
func (h *AdminHandler) Failures(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Dispatcher == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "outbox dispatcher unavailable", nil)
		return
	}
	kind := Kind(strings.TrimSpace(r.URL.Query().Get("kind")))
	limit := common.QueryInt(r, "limit", h.pageSize(), 1, 200)
	offset := common.QueryInt(r, "offset", 0, 0, 0)

	all := h.Dispatcher.Failures()
	matched := make([]Failure, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if kind == "" || all[i].Kind == kind {
			matched = append(matched, all[i])
		}
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	resp := map[string]any{
		"data":  matched[offset:end],
		"total": total,
	}
	if kind != "" {
		resp["kind"] = kind
	}
	common.JSON(w, http.StatusOK, resp)
}

// Stats returns dispatcher counters and, with asynq, the pending task count.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Dispatcher == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "outbox dispatcher unavailable", nil)
		return
	}
	resp := map[string]any{"dispatcher": h.Dispatcher.Stats()}
	if h.Redis != nil {
		queue := QueueName(h.Queue)
		pending, err := h.Redis.LLen(r.Context(), PendingKey(queue)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
			return
		}
		resp["queue"] = queue
		resp["pending"] = pending
	}
	common.Data(w, http.StatusOK, resp)
}

func (h *AdminHandler) pageSize() int {
	if h.PageSize <= 0 {
		return 50
	}
	return h.PageSize
}

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-liquidacion/internal/liquidation"
	"github.com/noah-isme/backend-liquidacion/internal/upstream"
)

func failingDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	d := NewDispatcher(transportFunc(func(_ context.Context, cmd Command) (upstream.Result, error) {
		return upstream.Result{}, errors.New("rejected " + cmd.ItemID)
	}), Options{Workers: 1, Logger: zerolog.Nop()})
	d.Enqueue(UpdateGeneralInfo(liquidation.GeneralInfo{}))
	d.Enqueue(DeleteItem("a", liquidation.TypeDeductions))
	d.Enqueue(DeleteItem("b", liquidation.TypeDeductions))
	d.Close()
	return d
}

func TestAdminFailuresFiltersAndPages(t *testing.T) {
	h := &AdminHandler{Dispatcher: failingDispatcher(t)}

	rr := httptest.NewRecorder()
	h.Failures(rr, httptest.NewRequest(http.MethodGet, "/admin/outbox/failures?kind=delete_item&limit=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data  []Failure `json:"data"`
		Total int       `json:"total"`
		Kind  string    `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	require.Equal(t, "delete_item", resp.Kind)
	require.Len(t, resp.Data, 1)
	require.Equal(t, "rejected b", resp.Data[0].Error)

	rr = httptest.NewRecorder()
	h.Failures(rr, httptest.NewRequest(http.MethodGet, "/admin/outbox/failures?offset=10", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Total)
	require.Empty(t, resp.Data)
}

func TestAdminStatsReportsQueueDepth(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	_, err := AsynqTransport{Client: client}.Deliver(context.Background(), DeleteItem("x", liquidation.TypeCommissions))
	require.NoError(t, err)

	h := &AdminHandler{Dispatcher: failingDispatcher(t), Redis: rdb}
	rr := httptest.NewRecorder()
	h.Stats(rr, httptest.NewRequest(http.MethodGet, "/admin/outbox/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data struct {
			Dispatcher Stats  `json:"dispatcher"`
			Queue      string `json:"queue"`
			Pending    int64  `json:"pending"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, int64(3), resp.Data.Dispatcher.Failed)
	require.Equal(t, DefaultQueue, resp.Data.Queue)
	require.Equal(t, int64(1), resp.Data.Pending)
}

func TestAdminHandlersRequireDispatcher(t *testing.T) {
	var h *AdminHandler
	rr := httptest.NewRecorder()
	h.Stats(rr, httptest.NewRequest(http.MethodGet, "/admin/outbox/stats", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

package controller_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cassiomorais/ordercore/internal/application/tasks"
	"github.com/cassiomorais/ordercore/internal/controller"
	"github.com/cassiomorais/ordercore/internal/domain/task"
	"github.com/cassiomorais/ordercore/internal/infrastructure/config"
	"github.com/cassiomorais/ordercore/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/ordercore/internal/infrastructure/redis"
	"github.com/cassiomorais/ordercore/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	env    *testutil.Env
	stream *infraRedis.StreamProducer
	router http.Handler
}

func newFixture(t *testing.T, health map[string]controller.Pinger) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	stream := infraRedis.NewStreamProducer(client, "")

	reg := prometheus.NewRegistry()
	exporter := tasks.NewExporter(env.Transactions, env.Tasks, config.TasksConfig{DefaultTries: 3}, nil, zerolog.Nop(), env.Clock.Now)
	router := controller.NewRouter(controller.RouterDeps{
		ServiceName:  "ordercore-worker",
		Health:       health,
		Transactions: env.Transactions,
		Exporter:     exporter,
		Aborted:      stream,
		Metrics:      observability.NewMetrics("test", reg),
		Gatherer:     reg,
	})
	return &fixture{env: env, stream: stream, router: router}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	ok := controller.PingerFunc(func(ctx context.Context) error { return nil })
	down := controller.PingerFunc(func(ctx context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name   string
		deps   map[string]controller.Pinger
		status int
		reason string
	}{
		{"all up", map[string]controller.Pinger{"database": ok, "redis": ok}, http.StatusOK, ""},
		{"redis down", map[string]controller.Pinger{"database": ok, "redis": down}, http.StatusServiceUnavailable, "redis unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.deps)

			assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health/live", "").Code)

			w := f.do(http.MethodGet, "/health/ready", "")
			assert.Equal(t, tt.status, w.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.reason, body["reason"])
		})
	}
}

func TestGetTransaction(t *testing.T) {
	f := newFixture(t, nil)
	placed := f.env.Confirmed(t, testutil.Purchase{Seats: []string{"1"}, SeatPrice: 1000, CardAmount: 1000})

	w := f.do(http.MethodGet, "/transactions/PlaceOrder/"+placed.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp controller.TransactionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Confirmed", resp.Status)
	assert.Equal(t, placed.Result.Order.OrderNumber, resp.OrderNumber)
	assert.Equal(t, "Unexported", resp.TasksExportationStatus)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"unknown kind", "/transactions/Refund/" + placed.ID.String(), http.StatusBadRequest, "argument"},
		{"bad id", "/transactions/PlaceOrder/not-a-uuid", http.StatusBadRequest, "argument"},
		{"wrong kind", "/transactions/ReturnOrder/" + placed.ID.String(), http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, w.Code)
			var e controller.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&e))
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestExport(t *testing.T) {
	f := newFixture(t, nil)
	placed := f.env.Confirmed(t, testutil.Purchase{Seats: []string{"1"}, SeatPrice: 1000, CardAmount: 1000})
	body := `{"kind":"PlaceOrder","transactionId":"` + placed.ID.String() + `"}`

	for i := 0; i < 2; i++ {
		w := f.do(http.MethodPost, "/tasks/export", body)
		require.Equal(t, http.StatusOK, w.Code)
		var resp controller.ExportResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, []string{string(task.NamePlaceOrder)}, resp.Tasks)
	}
	assert.Len(t, f.env.Tasks.All(task.NamePlaceOrder), 1)

	w := f.do(http.MethodPost, "/tasks/export", `{"kind":"Refund","transactionId":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	inProgress := testutil.NewInProgress(f.env.Clock.Now())
	f.env.Transactions.Put(inProgress)
	w = f.do(http.MethodPost, "/tasks/export", `{"kind":"PlaceOrder","transactionId":"`+inProgress.ID.String()+`"}`)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestAborted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, id := range []string{"t-1", "t-2", "t-3"} {
		require.NoError(t, f.stream.PublishAborted(ctx, infraRedis.AbortedTask{
			TaskID: id, Name: "payCreditCard", NumberOfTried: 10, LastError: "gateway down", AbortedAt: time.Unix(1790000000, 0),
		}))
	}

	w := f.do(http.MethodGet, "/tasks/aborted?count=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp []controller.AbortedTaskResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "t-3", resp[0].TaskID)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/tasks/aborted?count=0", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.do(http.MethodGet, "/health/live", "")

	w := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

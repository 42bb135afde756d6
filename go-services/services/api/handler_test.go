package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"anchor-backtest/go-services/services/candles"
	"anchor-backtest/go-services/services/engine"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Load(ctx context.Context, symbol, timeframe string) ([]candles.Candle, error) {
	args := m.Called(ctx, symbol, timeframe)
	bars, _ := args.Get(0).([]candles.Candle)
	return bars, args.Error(1)
}

func (m *mockStore) Symbols(ctx context.Context, timeframe string) ([]string, error) {
	args := m.Called(ctx, timeframe)
	syms, _ := args.Get(0).([]string)
	return syms, args.Error(1)
}

const hourMs = int64(3_600_000)

func closes(vals ...float64) []candles.Candle {
	out := make([]candles.Candle, len(vals))
	for i, v := range vals {
		out[i] = candles.Candle{Timestamp: int64(i) * hourMs, Open: v, High: v + 2, Low: v - 1, Close: v + 1, Volume: 1000}
	}
	return out
}

const body = `{
	"target": {"symbols": ["T"], "timeframe": "1H"},
	"buy_rules": [{"symbol": "A", "timeframe": "1H", "lag": 0, "change_pct": 0, "direction": "up"}]
}`

func newTestRouter(store candles.Store) (*gin.Engine, *MemoryJobStore) {
	gin.SetMode(gin.TestMode)
	jobs := NewMemoryJobStore(10)
	r := gin.New()
	NewBacktestHandler(store, jobs, 2, nil).SetupRoutes(r)
	return r, jobs
}

func do(r http.Handler, method, path, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  *engine.Report   `json:"data"`
	Error *engine.APIError `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func TestCreateAndGetBacktest(t *testing.T) {
	store := new(mockStore)
	store.On("Load", mock.Anything, "A", "1H").Return(closes(9, 8, 9, 10, 9, 8), nil)
	store.On("Load", mock.Anything, "T", "1H").Return(closes(100, 101, 99, 105, 110, 108), nil)
	r, jobs := newTestRouter(store)

	w := do(r, http.MethodPost, "/api/v1/backtest", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decode(t, w)
	require.NotNil(t, env.Data)
	require.Len(t, env.Data.Rows, 1)
	assert.Equal(t, "T", env.Data.Rows[0].Symbol)
	assert.Equal(t, engine.DefaultInitialCash, env.Data.Rows[0].InitialCash)

	jobID := env.Data.Manifest.JobID
	_, ok := jobs.Get(jobID)
	assert.True(t, ok)

	w = do(r, http.MethodGet, "/api/v1/backtest/"+jobID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, jobID, decode(t, w).Data.Manifest.JobID)
	store.AssertExpectations(t)
}

func TestGetBacktestNotFound(t *testing.T) {
	r, _ := newTestRouter(new(mockStore))
	w := do(r, http.MethodGet, "/api/v1/backtest/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w).Error.Code)
}

func TestCreateBacktestInvalidBody(t *testing.T) {
	r, _ := newTestRouter(new(mockStore))

	w := do(r, http.MethodPost, "/api/v1/backtest", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PARAMS", decode(t, w).Error.Code)

	w = do(r, http.MethodPost, "/api/v1/backtest", `{"target": {"timeframe": "1H"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PARAMS", decode(t, w).Error.Code)
}

func TestCreateBacktestMissingAnchor(t *testing.T) {
	store := new(mockStore)
	store.On("Load", mock.Anything, "A", "1H").Return(nil, fmt.Errorf("A_1H: %w", candles.ErrSeriesNotFound))
	r, _ := newTestRouter(store)

	w := do(r, http.MethodPost, "/api/v1/backtest", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "CONFIGURATION_ERROR", decode(t, w).Error.Code)
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(new(mockStore))
	w := do(r, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
}

func TestMemoryJobStoreEvicts(t *testing.T) {
	jobs := NewMemoryJobStore(2)
	for _, id := range []string{"a", "b", "c"} {
		jobs.Put(&engine.Report{Manifest: &engine.RunManifest{JobID: id}})
	}
	_, ok := jobs.Get("a")
	assert.False(t, ok)
	_, ok = jobs.Get("c")
	assert.True(t, ok)
}

package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-risk-monitor/internal/dao"
	"github.com/utrading/utrading-risk-monitor/internal/risk"
)

type fakeManager struct {
	enabled  bool
	err      error
	statuses map[string]bool
}

func (m *fakeManager) Enabled() bool { return m.enabled }

func (m *fakeManager) Evaluate(_ context.Context, trigger string) (*risk.PassResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &risk.PassResult{
		Timestamp:     time.Unix(1700000000, 0).UTC(),
		NotComputable: []string{"p2"},
		Errors:        []*risk.PassError{{PositionID: "p2", Err: risk.ErrNotComputable}},
		Summary:       risk.Summary{Positions: 2, Computable: 1, NotComputable: 1, Errors: 1},
	}, nil
}

func (m *fakeManager) DisableAlert(id string) error { return m.set(id, false) }

func (m *fakeManager) ActivateAlert(id string) error { return m.set(id, true) }

func (m *fakeManager) set(id string, active bool) error {
	if id == "missing" {
		return fmt.Errorf("%w: %s", dao.ErrAlertNotFound, id)
	}
	if id == "broken" {
		return errors.New("db down")
	}
	if m.statuses == nil {
		m.statuses = map[string]bool{}
	}
	m.statuses[id] = active
	return nil
}

func (m *fakeManager) GetStats() map[string]any {
	return map[string]any{"passes": 3}
}

type fakeConn struct{ connected bool }

func (c fakeConn) IsConnected() bool    { return c.connected }
func (c fakeConn) IsReconnecting() bool { return !c.connected }

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	GetMetrics()
	s := NewHealthServer(":0", &fakeManager{enabled: true}, fakeConn{connected: true}, fakeConn{connected: true})
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.Bytes()
	assert.True(t, gjson.GetBytes(body, "healthy").Bool())
	assert.True(t, gjson.GetBytes(body, "price_feed.connected").Bool())
	assert.True(t, gjson.GetBytes(body, "nats.connected").Bool())
	assert.Equal(t, int64(3), gjson.GetBytes(body, "monitor.stats.passes").Int())

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health/live").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health/ready").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/status").Code)

	rec = do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "risk_monitor_")

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/evaluate").Code)
}

func TestReadyRequiresPublisher(t *testing.T) {
	s := NewHealthServer(":0", nil, nil, fakeConn{connected: false})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s.Handler(), http.MethodGet, "/health/ready").Code)

	s = NewHealthServer(":0", nil, nil, nil)
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/health/ready").Code)
}

func TestEvaluateEndpoint(t *testing.T) {
	m := &fakeManager{enabled: true}
	h := NewHealthServer(":0", m, nil, nil).Handler()

	rec := do(t, h, http.MethodPost, "/evaluate")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.Bytes()
	assert.Equal(t, int64(2), gjson.GetBytes(body, "summary.positions").Int())
	assert.Equal(t, "p2", gjson.GetBytes(body, "not_computable.0").String())
	assert.Equal(t, risk.KindNotComputable, gjson.GetBytes(body, "errors.0.kind").String())
	assert.Equal(t, int64(0), gjson.GetBytes(body, "fired_events").Int())

	m.err = errors.New("commit failed")
	assert.Equal(t, http.StatusInternalServerError, do(t, h, http.MethodPost, "/evaluate").Code)

	m.enabled = false
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/evaluate").Code)

	h = NewHealthServer(":0", nil, nil, nil).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/evaluate").Code)
}

func TestAlertStatusEndpoints(t *testing.T) {
	m := &fakeManager{enabled: true}
	h := NewHealthServer(":0", m, nil, nil).Handler()

	rec := do(t, h, http.MethodPost, "/alerts/a1/disable")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, gjson.GetBytes(rec.Body.Bytes(), "active").Bool())
	assert.False(t, m.statuses["a1"])

	rec = do(t, h, http.MethodPost, "/alerts/a1/activate")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, m.statuses["a1"])

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/alerts/missing/disable").Code)
	assert.Equal(t, http.StatusInternalServerError, do(t, h, http.MethodPost, "/alerts/broken/activate").Code)
}

func TestStartStop(t *testing.T) {
	s := NewHealthServer("127.0.0.1:0", nil, nil, nil)
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s.Handler(), http.MethodGet, "/health").Code)
}

package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utrading/utrading-risk-monitor/internal/dao"
	"github.com/utrading/utrading-risk-monitor/internal/risk"
	"github.com/utrading/utrading-risk-monitor/pkg/goplus"
	"github.com/utrading/utrading-risk-monitor/pkg/logger"
)

// TriggerManual 手动触发评估的来源标签
const TriggerManual = "manual"

// ManagerRef 风险管理器引用接口
type ManagerRef interface {
	Enabled() bool
	Evaluate(ctx context.Context, trigger string) (*risk.PassResult, error)
	DisableAlert(id string) error
	ActivateAlert(id string) error
	GetStats() map[string]any
}

// FeedRef 价格源引用接口
type FeedRef interface {
	IsConnected() bool
	IsReconnecting() bool
}

// PublisherRef NATS发布器引用接口
type PublisherRef interface {
	IsConnected() bool
}

// HealthServer HTTP 健康检查、指标和管理端点
type HealthServer struct {
	addr         string
	manager      ManagerRef
	feed         FeedRef
	publisher    PublisherRef
	server       *http.Server
	listener     net.Listener
	mu           sync.RWMutex
	healthy      bool
	healthySince time.Time
	startTime    time.Time
}

// NewHealthServer 创建健康检查服务器，feed 和 publisher 可为 nil
func NewHealthServer(addr string, manager ManagerRef, feed FeedRef, publisher PublisherRef) *HealthServer {
	return &HealthServer{
		addr:         addr,
		manager:      manager,
		feed:         feed,
		publisher:    publisher,
		healthy:      true,
		healthySince: time.Now(),
		startTime:    time.Now(),
	}
}

// Handler 返回路由
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("GET /health", h.healthHandler)
	mux.HandleFunc("GET /health/ready", h.readyHandler)
	mux.HandleFunc("GET /health/live", h.liveHandler)

	// Prometheus指标端点
	mux.Handle("GET /metrics", promhttp.Handler())

	// 服务状态端点
	mux.HandleFunc("GET /status", h.statusHandler)

	// 管理端点
	mux.HandleFunc("POST /evaluate", h.evaluateHandler)
	mux.HandleFunc("POST /alerts/{id}/disable", h.alertStatusHandler(false))
	mux.HandleFunc("POST /alerts/{id}/activate", h.alertStatusHandler(true))

	return mux
}

// Start 启动HTTP服务器
func (h *HealthServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}
	h.listener = ln

	h.server = &http.Server{
		Handler:      h.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	goplus.Go(func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("health server error")
		}
	})

	logger.Info().Str("addr", ln.Addr().String()).Msg("health server started")
	return nil
}

// Addr 实际监听地址
func (h *HealthServer) Addr() string {
	if h.listener == nil {
		return h.addr
	}
	return h.listener.Addr().String()
}

// Stop 停止服务器
func (h *HealthServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.healthy = false
	h.mu.Unlock()

	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthHandler 健康检查处理器
func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// readyHandler 就绪检查处理器
func (h *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if !h.isReady() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// liveHandler 存活检查处理器
func (h *HealthServer) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// statusHandler 服务状态处理器
func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.getHealthStatus())
}

// evaluateHandler 手动触发一轮评估
func (h *HealthServer) evaluateHandler(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil || !h.manager.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "alert monitor disabled")
		return
	}

	res, err := h.manager.Evaluate(r.Context(), TriggerManual)
	if err != nil {
		logger.Error().Err(err).Str("trigger", TriggerManual).Msg("manual evaluation failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, NewPassResponse(res))
}

func (h *HealthServer) alertStatusHandler(activate bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.manager == nil {
			writeError(w, http.StatusServiceUnavailable, "manager unavailable")
			return
		}

		id := r.PathValue("id")
		var err error
		if activate {
			err = h.manager.ActivateAlert(id)
		} else {
			err = h.manager.DisableAlert(id)
		}

		switch {
		case errors.Is(err, dao.ErrAlertNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": activate})
		}
	}
}

// isReady 检查服务是否就绪
func (h *HealthServer) isReady() bool {
	h.mu.RLock()
	healthy := h.healthy
	h.mu.RUnlock()

	if !healthy {
		return false
	}
	if h.publisher != nil && !h.publisher.IsConnected() {
		return false
	}
	return true
}

// getHealthStatus 获取健康状态
func (h *HealthServer) getHealthStatus() HealthStatus {
	h.mu.RLock()
	healthy := h.healthy
	healthySince := h.healthySince
	h.mu.RUnlock()

	status := HealthStatus{
		Healthy:      healthy,
		HealthySince: healthySince.Format(time.RFC3339),
		Uptime:       time.Since(h.startTime).String(),
	}

	if h.feed != nil {
		status.PriceFeed = FeedStatus{
			Enabled:      true,
			Connected:    h.feed.IsConnected(),
			Reconnecting: h.feed.IsReconnecting(),
		}
	}
	if h.publisher != nil {
		status.NATS.Connected = h.publisher.IsConnected()
	}
	if h.manager != nil {
		status.Monitor = MonitorStatus{
			Enabled: h.manager.Enabled(),
			Stats:   h.manager.GetStats(),
		}
	}
	return status
}

// HealthStatus 健康状态结构
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	HealthySince string        `json:"healthy_since"`
	Uptime       string        `json:"uptime"`
	PriceFeed    FeedStatus    `json:"price_feed"`
	NATS         NATSStatus    `json:"nats"`
	Monitor      MonitorStatus `json:"monitor"`
}

// FeedStatus 价格源连接状态
type FeedStatus struct {
	Enabled      bool `json:"enabled"`
	Connected    bool `json:"connected"`
	Reconnecting bool `json:"reconnecting"`
}

// NATSStatus NATS连接状态
type NATSStatus struct {
	Connected bool `json:"connected"`
}

// MonitorStatus 告警监控状态
type MonitorStatus struct {
	Enabled bool           `json:"enabled"`
	Stats   map[string]any `json:"stats,omitempty"`
}

// PassResponse 手动评估的响应
type PassResponse struct {
	Timestamp         time.Time           `json:"timestamp"`
	Summary           risk.Summary        `json:"summary"`
	FiredEvents       int                 `json:"fired_events"`
	NotComputable     []string            `json:"not_computable"`
	DisableCandidates []string            `json:"disable_candidates"`
	Errors            []PassErrorResponse `json:"errors"`
}

type PassErrorResponse struct {
	Kind       string `json:"kind"`
	PositionID string `json:"position_id,omitempty"`
	AlertID    string `json:"alert_id,omitempty"`
	Message    string `json:"message"`
}

func NewPassResponse(res *risk.PassResult) PassResponse {
	resp := PassResponse{
		Timestamp:         res.Timestamp,
		Summary:           res.Summary,
		FiredEvents:       len(res.FiredEvents),
		NotComputable:     append([]string{}, res.NotComputable...),
		DisableCandidates: append([]string{}, res.DisableCandidates...),
		Errors:            make([]PassErrorResponse, 0, len(res.Errors)),
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, PassErrorResponse{
			Kind:       e.Kind(),
			PositionID: e.PositionID,
			AlertID:    e.AlertID,
			Message:    e.Error(),
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("write response failed")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

package nats

import (
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/utrading/utrading-risk-monitor/internal/models"
	"github.com/utrading/utrading-risk-monitor/internal/monitor"
	"github.com/utrading/utrading-risk-monitor/internal/risk"
	"github.com/utrading/utrading-risk-monitor/pkg/logger"
)

const (
	DefaultAlertSubject   = "risk.alert.fired"
	DefaultMetricsSubject = "risk.pass.summary"
)

var ErrPublisherClosed = errors.New("nats publisher closed")

// Publisher NATS 发布器
type Publisher struct {
	*nats.Conn
	alertSubject   string
	metricsSubject string

	mu     sync.RWMutex
	closed bool
}

// NewPublisher 创建 NATS 发布器
func NewPublisher(url, alertSubject, metricsSubject string) (*Publisher, error) {
	if alertSubject == "" {
		alertSubject = DefaultAlertSubject
	}
	if metricsSubject == "" {
		metricsSubject = DefaultMetricsSubject
	}

	conn, err := nats.Connect(url,
		nats.Name("utrading-risk-monitor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			monitor.SetNATSConnected(false)
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			monitor.SetNATSConnected(true)
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		Conn:           conn,
		alertSubject:   alertSubject,
		metricsSubject: metricsSubject,
	}

	monitor.SetNATSConnected(true)

	return p, nil
}

// PublishAlertEvent 发布告警事件
func (p *Publisher) PublishAlertEvent(ev models.AlertEvent) error {
	data, err := NewAlertMessage(ev).Marshal()
	if err != nil {
		logger.Error().Err(err).Str("event_id", ev.EventID).Msg("marshal alert message failed")
		return err
	}
	return p.publish(p.alertSubject, data)
}

// PublishPassSummary 发布评估轮次汇总
func (p *Publisher) PublishPassSummary(trigger string, summary risk.Summary, ts time.Time) error {
	data, err := NewPassSummaryMessage(trigger, summary, ts).Marshal()
	if err != nil {
		logger.Error().Err(err).Msg("marshal pass summary failed")
		return err
	}
	return p.publish(p.metricsSubject, data)
}

func (p *Publisher) publish(subject string, data []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	return p.Publish(subject, data)
}

// IsConnected 检查发布器是否已连接
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && p.Conn != nil && p.Conn.IsConnected()
}

// Close 排空并关闭连接
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	monitor.SetNATSConnected(false)

	if p.Conn != nil {
		if err := p.Conn.Drain(); err != nil {
			p.Conn.Close()
		}
	}
	return nil
}

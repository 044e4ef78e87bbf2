package feed

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/utrading/utrading-risk-monitor/internal/monitor"
	"github.com/utrading/utrading-risk-monitor/internal/processor"
	"github.com/utrading/utrading-risk-monitor/pkg/goplus"
	"github.com/utrading/utrading-risk-monitor/pkg/logger"
)

// Enqueuer 价格批次的下游队列
type Enqueuer interface {
	Enqueue(msg processor.Message) error
}

// Config 价格源配置
type Config struct {
	URL            string
	Assets         []string // 为空时接收全部资产
	Source         string
	InitialBackoff time.Duration // 默认 1s
	MaxBackoff     time.Duration // 默认 60s
}

// PriceFeed 订阅 allMids 并把价格批次投递到队列，断线后指数退避重连
type PriceFeed struct {
	cfg    Config
	assets map[string]struct{}
	sink   Enqueuer

	mu           sync.RWMutex
	client       *Client
	reconnecting atomic.Bool
	connects     atomic.Int64
	batches      atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPriceFeed(cfg Config, sink Enqueuer) *PriceFeed {
	if cfg.Source == "" {
		cfg.Source = "ws"
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 60 * time.Second
	}

	assets := make(map[string]struct{}, len(cfg.Assets))
	for _, a := range cfg.Assets {
		assets[a] = struct{}{}
	}

	return &PriceFeed{
		cfg:    cfg,
		assets: assets,
		sink:   sink,
	}
}

// Start 启动连接循环（非阻塞）
func (f *PriceFeed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.wg.Add(1)
	goplus.Go(func() {
		defer f.wg.Done()
		f.run(ctx)
	})
}

// Close 停止价格源
func (f *PriceFeed) Close() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
}

func (f *PriceFeed) run(ctx context.Context) {
	backoff := f.cfg.InitialBackoff
	for {
		disconnected, err := f.connect(ctx)
		if err == nil {
			backoff = f.cfg.InitialBackoff
			monitor.SetWebSocketConnected(true)
			logger.Info().Str("url", f.cfg.URL).Int("assets", len(f.assets)).Msg("price feed connected")

			select {
			case <-ctx.Done():
			case <-disconnected:
			}
			f.dropClient()
			monitor.SetWebSocketConnected(false)
		} else {
			logger.Warn().Err(err).Str("url", f.cfg.URL).Msg("price feed connect failed")
		}

		if ctx.Err() != nil {
			return
		}

		// 抖动范围 [0.5, 1.5] × backoff
		wait := time.Duration(float64(backoff) * (0.5 + rand.Float64()))
		f.reconnecting.Store(true)
		logger.Warn().Dur("backoff", wait).Msg("price feed reconnecting")

		select {
		case <-ctx.Done():
			f.reconnecting.Store(false)
			return
		case <-time.After(wait):
		}
		f.reconnecting.Store(false)

		backoff *= 2
		if backoff > f.cfg.MaxBackoff {
			backoff = f.cfg.MaxBackoff
		}
	}
}

// connect 建立连接并订阅，返回断线通知
func (f *PriceFeed) connect(ctx context.Context) (<-chan struct{}, error) {
	client := NewClient(f.cfg.URL)
	disconnected := make(chan struct{})
	var once sync.Once
	client.SetDisconnectCallback(func() { once.Do(func() { close(disconnected) }) })
	client.SetMessageHandler(f.handleMessage)

	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, err
	}
	if err := client.Subscribe(Subscription{Channel: ChannelAllMids}); err != nil {
		client.Close()
		return nil, err
	}

	f.mu.Lock()
	f.client = client
	f.mu.Unlock()
	f.connects.Add(1)

	return disconnected, nil
}

func (f *PriceFeed) dropClient() {
	f.mu.Lock()
	client := f.client
	f.client = nil
	f.mu.Unlock()

	if client != nil {
		client.Close()
	}
}

func (f *PriceFeed) handleMessage(msg Message) error {
	switch msg.Channel {
	case ChannelAllMids:
		prices, err := ParseAllMids(msg.Data, f.assets)
		if err != nil {
			return err
		}
		if len(prices) == 0 {
			return nil
		}
		f.batches.Add(1)
		return f.sink.Enqueue(processor.PriceBatchMessage{
			Prices:     prices,
			Source:     f.cfg.Source,
			ReceivedAt: time.Now(),
		})
	case ChannelError:
		logger.Warn().Str("data", string(msg.Data)).Msg("price feed error message")
	}
	return nil
}

func (f *PriceFeed) IsConnected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.client != nil && f.client.IsConnected()
}

func (f *PriceFeed) IsReconnecting() bool {
	return f.reconnecting.Load()
}

// GetStats 获取统计信息
func (f *PriceFeed) GetStats() map[string]any {
	return map[string]any{
		"connected":    f.IsConnected(),
		"reconnecting": f.IsReconnecting(),
		"connects":     f.connects.Load(),
		"batches":      f.batches.Load(),
		"assets":       len(f.assets),
	}
}

package processor

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-risk-monitor/internal/cache"
)

type triggerRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (r *triggerRecorder) Trigger(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *triggerRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

func TestPriceProcessor_UpdatesCacheAndTriggers(t *testing.T) {
	prices := cache.NewPriceCache()
	trigger := &triggerRecorder{}
	p := NewPriceProcessor(prices, nil, trigger)

	err := p.HandleMessage(PriceBatchMessage{
		Prices:     map[string]float64{"BTC": 65000, "ETH": 3000, "BAD": math.NaN(), "ZERO": 0},
		Source:     "ws",
		ReceivedAt: t0,
	})
	require.NoError(t, err)

	btc, ok := prices.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, 65000.0, btc.CurrentPrice)
	assert.Equal(t, "ws", btc.Source)

	_, ok = prices.Get("BAD")
	assert.False(t, ok)
	_, ok = prices.Get("ZERO")
	assert.False(t, ok)

	require.Equal(t, 1, trigger.Count())
	assert.Equal(t, TriggerPriceBatch, trigger.reasons[0])

	// 价格未变化不触发评估，但记录仍被刷新
	require.NoError(t, p.HandleMessage(PriceBatchMessage{Prices: map[string]float64{"BTC": 65000}, Source: "ws", ReceivedAt: t0.Add(time.Second)}))
	assert.Equal(t, 1, trigger.Count())
	btc, _ = prices.Get("BTC")
	assert.True(t, btc.LastUpdateTime.Equal(t0.Add(time.Second)))
	assert.Equal(t, 65000.0, btc.PreviousPrice)

	// 乱序的旧价格被忽略
	require.NoError(t, p.HandleMessage(PriceBatchMessage{Prices: map[string]float64{"BTC": 1}, Source: "ws", ReceivedAt: t0}))
	btc, _ = prices.Get("BTC")
	assert.Equal(t, 65000.0, btc.CurrentPrice)
	assert.Equal(t, 1, trigger.Count())
}

func TestPriceProcessor_WritesThroughBatchWriter(t *testing.T) {
	db := setupTestDB(t)
	w := NewBatchWriter(&BatchWriterConfig{BatchSize: 100, FlushInterval: time.Hour, MaxQueueSize: 100})
	w.Start()

	prices := cache.NewPriceCache()
	q := NewMessageQueue(10, NewPriceProcessor(prices, w, nil))
	q.Start()

	require.NoError(t, q.Enqueue(PriceBatchMessage{Prices: map[string]float64{"BTC": 100}, Source: "ws", ReceivedAt: t0}))
	require.NoError(t, q.Enqueue(PriceBatchMessage{Prices: map[string]float64{"BTC": 120}, Source: "ws", ReceivedAt: t0.Add(time.Minute)}))
	q.Stop()
	w.Stop()

	stored := loadPrice(t, db, "BTC")
	assert.Equal(t, 120.0, stored.CurrentPrice)
	assert.Equal(t, 100.0, stored.PreviousPrice)
	require.NotNil(t, stored.PreviousUpdateTime)
	assert.True(t, stored.PreviousUpdateTime.Equal(t0))
}

func TestPriceProcessor_UnknownMessage(t *testing.T) {
	p := NewPriceProcessor(cache.NewPriceCache(), nil, nil)
	assert.NoError(t, p.HandleMessage(errorMessage{}))
}

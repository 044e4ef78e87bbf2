package processor

import (
	"errors"
	"sync"
	"time"

	"github.com/utrading/utrading-risk-monitor/internal/dao"
	"github.com/utrading/utrading-risk-monitor/internal/models"
	"github.com/utrading/utrading-risk-monitor/internal/monitor"
	"github.com/utrading/utrading-risk-monitor/pkg/concurrent"
	"github.com/utrading/utrading-risk-monitor/pkg/goplus"
	"github.com/utrading/utrading-risk-monitor/pkg/logger"
)

var (
	// ErrQueueFull 队列满错误
	ErrQueueFull = errors.New("batch queue full")
	// ErrShutdownTimeout 关闭超时错误
	ErrShutdownTimeout = errors.New("shutdown timeout")
)

// BatchItem 批量写入项接口
type BatchItem interface {
	TableName() string
	DedupKey() string // 同键只保留最新一项
}

// PriceItem 价格记录写入项
type PriceItem struct {
	Price models.Price
}

func (i PriceItem) TableName() string {
	return models.Price{}.TableName()
}

func (i PriceItem) DedupKey() string {
	return "price:" + i.Price.AssetType
}

// UpsertFunc 按表批量写入
type UpsertFunc func(items []BatchItem) error

// BatchWriterConfig 批量写入配置
type BatchWriterConfig struct {
	BatchSize     int           // 批量大小（默认 100）
	FlushInterval time.Duration // 刷新间隔（默认 2s）
	MaxQueueSize  int           // 最大队列大小（默认 10000）
}

// BatchWriter 批量写入器
// 同一 DedupKey 的多次写入在缓冲区内合并，降低 IO 压力
type BatchWriter struct {
	config    *BatchWriterConfig
	queue     chan BatchItem
	buffers   concurrent.Map[string, BatchItem]
	upserts   map[string]UpsertFunc
	flushMu   sync.Mutex
	flushTick *time.Ticker
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewBatchWriter 创建批量写入器，默认注册价格表
func NewBatchWriter(config *BatchWriterConfig) *BatchWriter {
	if config == nil {
		config = &BatchWriterConfig{}
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 2 * time.Second
	}
	if config.MaxQueueSize <= 0 {
		config.MaxQueueSize = 10000
	}

	w := &BatchWriter{
		config:  config,
		queue:   make(chan BatchItem, config.MaxQueueSize),
		upserts: make(map[string]UpsertFunc),
		done:    make(chan struct{}),
	}
	w.Register(models.Price{}.TableName(), upsertPrices)
	return w
}

// Register 注册表的写入函数，需在 Start 之前调用
func (w *BatchWriter) Register(table string, fn UpsertFunc) {
	w.upserts[table] = fn
}

// Start 启动批量写入器
func (w *BatchWriter) Start() {
	w.flushTick = time.NewTicker(w.config.FlushInterval)

	w.wg.Add(2)
	goplus.Go(w.receiveLoop)
	goplus.Go(w.flushLoop)
}

func (w *BatchWriter) receiveLoop() {
	defer w.wg.Done()
	for {
		select {
		case item := <-w.queue:
			w.buffers.Store(item.DedupKey(), item)
			if w.buffers.Len() >= int64(w.config.BatchSize) {
				w.flushAll()
			}
		case <-w.done:
			for {
				select {
				case item := <-w.queue:
					w.buffers.Store(item.DedupKey(), item)
				default:
					return
				}
			}
		}
	}
}

func (w *BatchWriter) flushLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.flushTick.C:
			w.flushAll()
		case <-w.done:
			return
		}
	}
}

// flushAll 按表分组写入缓冲区中的全部数据
func (w *BatchWriter) flushAll() {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	grouped := make(map[string][]BatchItem)
	flushed := make(map[string]BatchItem)

	w.buffers.Range(func(key string, item BatchItem) bool {
		table := item.TableName()
		grouped[table] = append(grouped[table], item)
		flushed[key] = item
		return true
	})
	if len(flushed) == 0 {
		return
	}

	failed := make(map[string]bool)
	for table, items := range grouped {
		fn, ok := w.upserts[table]
		if !ok {
			logger.Warn().Str("table", table).Int("count", len(items)).Msg("unsupported table for batch upsert, dropped")
			continue
		}

		start := time.Now()
		if err := fn(items); err != nil {
			failed[table] = true
			logger.Error().Err(err).Str("table", table).Int("count", len(items)).Msg("batch upsert failed")
			continue
		}
		monitor.ObserveBatchWrite(len(items), time.Since(start))
		logger.Debug().Str("table", table).Int("count", len(items)).Msg("batch upsert success")
	}

	// 失败的表保留在缓冲区等待下次刷新；期间被更新的键不删除
	for key, item := range flushed {
		if failed[item.TableName()] {
			continue
		}
		w.buffers.CompareAndDelete(key, item)
	}
}

// upsertPrices 批量 upsert 价格记录
func upsertPrices(items []BatchItem) error {
	prices := make([]*models.Price, 0, len(items))
	for _, item := range items {
		if p, ok := item.(PriceItem); ok {
			price := p.Price
			prices = append(prices, &price)
		}
	}
	return dao.Price().BatchUpsert(prices)
}

// Add 添加写入项
func (w *BatchWriter) Add(item BatchItem) error {
	select {
	case w.queue <- item:
		return nil
	default:
		monitor.IncMessageQueueFull()
		return ErrQueueFull
	}
}

// Pending 缓冲区中待写入的数量
func (w *BatchWriter) Pending() int64 {
	return w.buffers.Len()
}

// Stop 停止写入器并刷新剩余数据，可重复调用
func (w *BatchWriter) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.flushAll()
		if w.flushTick != nil {
			w.flushTick.Stop()
		}
	})
}

// GracefulShutdown 优雅关闭，带超时控制
func (w *BatchWriter) GracefulShutdown(timeout time.Duration) error {
	done := make(chan struct{})
	goplus.Go(func() {
		w.Stop()
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		logger.Warn().Dur("timeout", timeout).Int64("pending", w.Pending()).Msg("batch writer shutdown timeout")
		return ErrShutdownTimeout
	}
}

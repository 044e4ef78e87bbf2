package processor

import (
	"math"
	"sort"

	"github.com/utrading/utrading-risk-monitor/internal/cache"
	"github.com/utrading/utrading-risk-monitor/internal/monitor"
	"github.com/utrading/utrading-risk-monitor/pkg/logger"
)

// TriggerPriceBatch 价格批次触发评估的来源标签
const TriggerPriceBatch = "price_batch"

// EvaluateTrigger 异步请求一轮评估
type EvaluateTrigger interface {
	Trigger(reason string)
}

// PriceProcessor 价格消息处理器
// 刷新价格缓存，写入批量队列，并在有价格变化时请求评估
type PriceProcessor struct {
	prices      cache.PriceCacheInterface
	batchWriter *BatchWriter
	trigger     EvaluateTrigger
}

// NewPriceProcessor 创建价格处理器，bw 和 trigger 可为 nil
func NewPriceProcessor(prices cache.PriceCacheInterface, bw *BatchWriter, trigger EvaluateTrigger) *PriceProcessor {
	return &PriceProcessor{
		prices:      prices,
		batchWriter: bw,
		trigger:     trigger,
	}
}

// HandleMessage 实现 MessageHandler 接口
func (p *PriceProcessor) HandleMessage(msg Message) error {
	switch m := msg.(type) {
	case PriceBatchMessage:
		return p.handlePriceBatch(m)
	default:
		logger.Warn().Str("type", msg.Type()).Msg("unknown message type")
		return nil
	}
}

func (p *PriceProcessor) handlePriceBatch(msg PriceBatchMessage) error {
	assets := make([]string, 0, len(msg.Prices))
	for asset := range msg.Prices {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	changed := 0
	for _, asset := range assets {
		price := msg.Prices[asset]
		if !(price > 0) || math.IsInf(price, 0) {
			monitor.IncPriceUpdate(asset, "invalid")
			logger.Warn().Str("asset", asset).Float64("price", price).Msg("invalid price ignored")
			continue
		}

		prev, hadPrev := p.prices.Get(asset)
		record, applied := p.prices.Roll(asset, price, msg.Source, msg.ReceivedAt)
		if !applied {
			monitor.IncPriceUpdate(asset, "stale")
			continue
		}
		monitor.IncPriceUpdate(asset, "applied")

		if p.batchWriter != nil {
			if err := p.batchWriter.Add(PriceItem{Price: record}); err != nil {
				logger.Error().Err(err).Str("asset", asset).Msg("failed to add price to batch writer")
			}
		}

		if !hadPrev || prev.CurrentPrice != price {
			changed++
		}
	}

	if changed > 0 && p.trigger != nil {
		p.trigger.Trigger(TriggerPriceBatch)
	}
	return nil
}

package processor

import "time"

// Message 消息接口
type Message interface {
	Type() string
}

// PriceBatchMessage 价格源推送的一批中间价
type PriceBatchMessage struct {
	Prices     map[string]float64 // BTC -> 65000.5
	Source     string
	ReceivedAt time.Time
}

func (m PriceBatchMessage) Type() string { return "price_batch" }

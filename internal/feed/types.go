package feed

// Channel 价格源 WebSocket 频道
type Channel string

const (
	ChannelAllMids              Channel = "allMids"
	ChannelSubscriptionResponse Channel = "subscriptionResponse"
	ChannelPong                 Channel = "pong"
	ChannelError                Channel = "error"
)

// Subscription 订阅请求
type Subscription struct {
	Channel Channel `json:"type"`
}

// Message WebSocket 推送消息，Data 为原始 JSON
type Message struct {
	Channel Channel
	Data    []byte
}

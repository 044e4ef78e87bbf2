package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-risk-monitor/pkg/goplus"
	"github.com/utrading/utrading-risk-monitor/pkg/logger"
)

const (
	writeWait      = 10 * time.Second // 写入超时
	pongWait       = 60 * time.Second // 读取超时（应大于心跳间隔）
	pingPeriod     = 50 * time.Second // 心跳间隔
	maxMessageSize = 1024 * 1024 * 2  // 最大消息限制 2MB
)

var ErrNotConnected = errors.New("connection closed")

// Client 单连接 WebSocket 客户端
type Client struct {
	url     string
	conn    *websocket.Conn
	mu      sync.RWMutex
	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	onMessage    func(Message) error
	onDisconnect func()
}

func NewClient(url string) *Client {
	if url == "" {
		panic("feed: URL cannot be empty")
	}
	return &Client{
		url:  url,
		done: make(chan struct{}),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial error: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// ctx 结束或 Close 时关闭底层连接，解除 ReadMessage 阻塞
	goplus.Go(func() {
		select {
		case <-ctx.Done():
		case <-c.done:
		}
		c.internalClose()
	})

	goplus.Go(func() { c.readPump(conn) })
	goplus.Go(c.pingPump)

	return nil
}

func (c *Client) internalClose() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.internalClose()
	})
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

func (c *Client) readPump(conn *websocket.Conn) {
	defer func() {
		c.internalClose()
		c.notifyDisconnect()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn().Err(err).Str("url", c.url).Msg("feed read error")
				}
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(pongWait))

		if !gjson.ValidBytes(raw) {
			logger.Warn().Int("size", len(raw)).Msg("invalid feed message")
			continue
		}

		msg := Message{
			Channel: Channel(gjson.GetBytes(raw, "channel").String()),
			Data:    []byte(gjson.GetBytes(raw, "data").Raw),
		}
		if c.onMessage != nil {
			if err = c.onMessage(msg); err != nil {
				logger.Error().Err(err).Str("channel", string(msg.Channel)).Msg("onMessage callback error")
			}
		}
	}
}

func (c *Client) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				return
			}
		}
	}
}

// Ping 同时发送控制帧 Ping 和应用层 ping
func (c *Client) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		return err
	}
	return conn.WriteJSON(map[string]string{"method": "ping"})
}

func (c *Client) Subscribe(sub Subscription) error {
	return c.writeJSONWithDeadline(map[string]any{
		"method":       "subscribe",
		"subscription": sub,
	})
}

func (c *Client) writeJSONWithDeadline(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func (c *Client) notifyDisconnect() {
	c.mu.RLock()
	callback := c.onDisconnect
	c.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetMessageHandler 需在 Connect 之前设置
func (c *Client) SetMessageHandler(handler func(Message) error) {
	c.onMessage = handler
}

func (c *Client) SetDisconnectCallback(callback func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = callback
}

package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	roomUUID string
	userUUID string
	send     chan []byte

	closeOnce sync.Once
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, roomUUID, userUUID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		roomUUID: roomUUID,
		userUUID: userUUID,
		send:     make(chan []byte, 64),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) RoomUUID() string { return c.roomUUID }
func (c *Client) UserUUID() string { return c.userUUID }

// CloseConn 关闭底层连接
func (c *Client) CloseConn() { _ = c.conn.Close() }

func (c *Client) logCtx() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"user_uuid": c.userUUID, "room_uuid": c.roomUUID})
}

// trySend 非阻塞发送，通道已满时返回 false
func (c *Client) trySend(message []byte) (ok bool) {
	defer func() {
		// send 已被关闭
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// readPump 只用来感知连接断开和处理 pong，房间事件流是单向的
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.messageChan <- HubMessage{Type: MsgUnregister, Client: c}:
		case <-time.After(time.Second):
			c.logCtx().Warn("Timeout sending unregister message to Hub channel, client may stay registered")
		}
		c.CloseConn()
		c.logCtx().Debug("readPump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logCtx().WithError(err).Warn("WebSocket read error (unexpected close)")
			}
			return
		}
	}
}

// writePump 将 send 通道中的消息写到连接，并定期发送 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.CloseConn()
		c.logCtx().Debug("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了 send 通道
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logCtx().WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logCtx().WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}

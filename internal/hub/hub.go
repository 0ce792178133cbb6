package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/repository"
	"github.com/netless-io/flat-server-sub001/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// 客户端只会发送很小的控制消息
	maxMessageSize = 512
)

// 在 Hub 内部通道传递的消息类型
const (
	MsgRegister   = "register"
	MsgUnregister = "unregister"
)

// HubMessage 在 Hub 内部通道传递的消息
type HubMessage struct {
	Type   string
	Client *Client
}

// Hub 维护本实例上的 websocket 连接，按房间分组，把房间事件推送给房间内的连接。
// 事件本身来自 redis 频道，所以其他实例产生的事件也会到达这里。
type Hub struct {
	messageChan chan HubMessage

	// map[roomUUID]map[*Client]bool
	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	presence  repository.PresenceRepository
	publisher service.RoomEventPublisher
	now       func() time.Time
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(presence repository.PresenceRepository, publisher service.RoomEventPublisher) *Hub {
	if presence == nil {
		panic("PresenceRepository cannot be nil for Hub")
	}
	if publisher == nil {
		panic("RoomEventPublisher cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		presence:    presence,
		publisher:   publisher,
		now:         time.Now,
	}
}

// Run 启动 Hub 的主事件循环，直到 ctx 结束。结束时关闭本实例的全部连接。
func (h *Hub) Run(ctx context.Context) {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			log.Info("Hub is shutting down...")
			return
		case msg := <-h.messageChan:
			switch msg.Type {
			case MsgRegister:
				h.registerClient(ctx, msg.Client)
			case MsgUnregister:
				h.unregisterClient(ctx, msg.Client)
			default:
				log.Warnf("Hub: Received unknown message type: %s", msg.Type)
			}
		}
	}
}

// registerClient 处理客户端注册逻辑
func (h *Hub) registerClient(ctx context.Context, client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_uuid": client.RoomUUID(),
		"user_uuid": client.UserUUID(),
		"action":    "registerClient",
	})

	h.roomsMu.Lock()
	if _, ok := h.rooms[client.roomUUID]; !ok {
		h.rooms[client.roomUUID] = make(map[*Client]bool)
		logCtx.Debug("Client list created for room")
	}
	h.rooms[client.roomUUID][client] = true
	h.roomsMu.Unlock()
	logCtx.Info("Client registered to Hub")

	if err := h.presence.Join(ctx, client.roomUUID, client.userUUID, h.now()); err != nil {
		logCtx.WithError(err).Warn("Failed to record presence")
	}
	h.publishMember(ctx, logCtx, client, domain.RoomEventMemberJoined)
}

// unregisterClient 处理客户端注销逻辑，同一用户在本实例上的最后一个连接断开时才移出在线列表
func (h *Hub) unregisterClient(ctx context.Context, client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"room_uuid": client.RoomUUID(),
		"user_uuid": client.UserUUID(),
		"action":    "unregisterClient",
	})

	h.roomsMu.Lock()
	roomClients, ok := h.rooms[client.roomUUID]
	if !ok || !roomClients[client] {
		h.roomsMu.Unlock()
		logCtx.Debug("Client already unregistered")
		return
	}
	delete(roomClients, client)
	client.closeSend()
	stillOnline := false
	for other := range roomClients {
		if other.userUUID == client.userUUID {
			stillOnline = true
			break
		}
	}
	if len(roomClients) == 0 {
		delete(h.rooms, client.roomUUID)
		logCtx.Debug("Room empty, removed from Hub")
	}
	h.roomsMu.Unlock()
	logCtx.Info("Client unregistered from Hub")

	if stillOnline {
		return
	}
	if err := h.presence.Leave(ctx, client.roomUUID, client.userUUID); err != nil {
		logCtx.WithError(err).Warn("Failed to clear presence")
	}
	h.publishMember(ctx, logCtx, client, domain.RoomEventMemberLeft)
}

func (h *Hub) publishMember(ctx context.Context, logCtx *logrus.Entry, client *Client, eventType domain.RoomEventType) {
	online, err := h.presence.Count(ctx, client.roomUUID)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to count online members")
	}
	event := domain.RoomEvent{
		Type:     eventType,
		RoomUUID: client.roomUUID,
		UserUUID: client.userUUID,
		Online:   online,
		At:       h.now().UTC(),
	}
	if err := h.publisher.PublishRoomEvent(ctx, event); err != nil {
		logCtx.WithError(err).Warn("Failed to publish member event")
	}
}

// Deliver 把某个房间的事件推送给本实例上该房间的全部连接。
// 作为 redis 订阅的回调使用，payload 为事件 JSON。
func (h *Hub) Deliver(roomUUID string, payload []byte) {
	if !json.Valid(payload) {
		logrus.WithField("room_uuid", roomUUID).Warn("Hub: dropping malformed room event")
		return
	}

	h.roomsMu.RLock()
	clients := make([]*Client, 0, len(h.rooms[roomUUID]))
	for client := range h.rooms[roomUUID] {
		clients = append(clients, client)
	}
	h.roomsMu.RUnlock()
	if len(clients) == 0 {
		return
	}

	logCtx := logrus.WithFields(logrus.Fields{
		"room_uuid":       roomUUID,
		"message_size":    len(payload),
		"recipient_count": len(clients),
	})
	logCtx.Debug("Delivering room event")

	for _, client := range clients {
		if !client.trySend(payload) {
			logCtx.WithField("receiver_user_uuid", client.UserUUID()).Warn("Client send channel full, skipping this client")
		}
	}
}

// ClientCount 本实例上某个房间的连接数
func (h *Hub) ClientCount(roomUUID string) int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms[roomUUID])
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)，队列已满时返回 false
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logCtx := logrus.WithField("message_type", msg.Type)
		if msg.Client != nil {
			logCtx = logCtx.WithFields(logrus.Fields{"room_uuid": msg.Client.roomUUID, "user_uuid": msg.Client.userUUID})
		}
		logCtx.Warn("Hub message channel full, dropping message")
		return false
	}
}

func (h *Hub) closeAll() {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	for roomUUID, clients := range h.rooms {
		for client := range clients {
			client.closeSend()
		}
		delete(h.rooms, roomUUID)
	}
}

package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	httphandler "github.com/netless-io/flat-server-sub001/internal/handler/http"
	"github.com/netless-io/flat-server-sub001/internal/hub"
	"github.com/netless-io/flat-server-sub001/internal/service"
)

// RoomMembership 建立连接前确认用户是房间成员且房间未结束
type RoomMembership interface {
	Info(ctx context.Context, roomUUID, userUUID string) (*service.RoomInfo, error)
}

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
	rooms    RoomMembership
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。allowedOrigins 为空或包含 "*" 时不检查 Origin。
func NewWebSocketHandler(h *hub.Hub, rooms RoomMembership, allowedOrigins []string) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if rooms == nil {
		panic("RoomMembership cannot be nil for WebSocketHandler")
	}

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		hub:   h,
		rooms: rooms,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// HandleConnection 处理 WebSocket 连接请求
// URL 格式: /ws/rooms/:roomUUID
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userUUID := c.GetString("user_uuid")
	if userUUID == "" {
		logrus.Warn("WS Handler: user_uuid not found in context")
		httphandler.HandleServiceError(c, service.ErrNeedLoginAgain)
		return
	}
	roomUUID := c.Param("roomUUID")
	logCtx := logrus.WithFields(logrus.Fields{"user_uuid": userUUID, "room_uuid": roomUUID})

	// 1. 确认成员身份
	info, err := h.rooms.Info(c.Request.Context(), roomUUID, userUUID)
	if err != nil {
		logCtx.WithError(err).Info("WS Handler: membership check failed")
		httphandler.HandleServiceError(c, err)
		return
	}
	if info.RoomStatus == domain.RoomStatusStopped {
		httphandler.HandleServiceError(c, service.ErrRoomIsEnded)
		return
	}

	// 2. 升级连接，失败时 Upgrade 已经写好了 HTTP 错误
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logCtx.WithError(err).Warn("WS Handler: Failed to upgrade connection")
		return
	}

	// 3. 注册到 Hub 并启动读写 goroutine
	client := hub.NewClient(h.hub, conn, roomUUID, userUUID)
	if !h.hub.QueueMessage(hub.HubMessage{Type: hub.MsgRegister, Client: client}) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}
	client.Run()
	logCtx.Info("WS Handler: Client connected")
}

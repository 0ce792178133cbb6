package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/dto"
	"github.com/netless-io/flat-server-sub001/internal/repository"
	"github.com/netless-io/flat-server-sub001/internal/service"
)

const defaultPageSize = 50

// RoomService RoomHandler 依赖的房间操作，由 *service.RoomService 实现
type RoomService interface {
	Create(ctx context.Context, ownerUUID string, in service.CreateRoomInput) (*service.CreateRoomResult, error)
	Schedule(ctx context.Context, ownerUUID string, in service.ScheduleRoomInput) (*service.ScheduleRoomResult, error)
	Join(ctx context.Context, userUUID, id string) (*service.JoinResult, error)
	Info(ctx context.Context, roomUUID, userUUID string) (*service.RoomInfo, error)
	PeriodicInfo(ctx context.Context, periodicUUID, userUUID string) (*service.PeriodicInfo, error)
	List(ctx context.Context, userUUID string, filter repository.RoomListFilter, page, size int) ([]domain.Room, error)
	Start(ctx context.Context, roomUUID, callerUUID string) error
	Pause(ctx context.Context, roomUUID, callerUUID string) error
	Stop(ctx context.Context, roomUUID, callerUUID string) error
	Cancel(ctx context.Context, roomUUID, userUUID string) error
	CancelPeriodic(ctx context.Context, periodicUUID, userUUID string) error
	UpdateOrdinary(ctx context.Context, userUUID, roomUUID string, in service.UpdateRoomInput) error
	UpdatePeriodic(ctx context.Context, userUUID string, in service.UpdatePeriodicInput) (*service.ScheduleRoomResult, error)
	UpdatePeriodicSubRoom(ctx context.Context, userUUID, periodicUUID, roomUUID string, begin, end time.Time) error
	BanRooms(ctx context.Context, roomUUIDs []string) ([]string, error)
}

// RoomHandler 房间相关的 HTTP 接口
type RoomHandler struct {
	rooms RoomService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(rooms RoomService) *RoomHandler {
	if rooms == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{rooms: rooms}
}

// Register 注册需要登录的房间路由
func (h *RoomHandler) Register(g *gin.RouterGroup) {
	g.POST("/room/create/ordinary", h.CreateOrdinary)
	g.POST("/room/create/periodic", h.CreatePeriodic)
	g.POST("/room/join", h.Join)
	g.POST("/room/info/ordinary", h.Info)
	g.POST("/room/info/periodic", h.PeriodicInfo)
	g.GET("/room/list/:type", h.List)
	g.POST("/room/update-status/started", h.updateStatus(RoomService.Start))
	g.POST("/room/update-status/paused", h.updateStatus(RoomService.Pause))
	g.POST("/room/update-status/stopped", h.updateStatus(RoomService.Stop))
	g.POST("/room/cancel", h.Cancel)
	g.POST("/room/cancel/periodic", h.CancelPeriodic)
	g.POST("/room/update/ordinary", h.UpdateOrdinary)
	g.POST("/room/update/periodic", h.UpdatePeriodic)
	g.POST("/room/update/periodic-sub-room", h.UpdatePeriodicSubRoom)
}

// RegisterAdmin 注册管理员路由
func (h *RoomHandler) RegisterAdmin(g *gin.RouterGroup) {
	g.POST("/room/ban", h.BanRooms)
}

// CreateOrdinary 创建普通房间
func (h *RoomHandler) CreateOrdinary(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}

	in := service.CreateRoomInput{
		Title:     req.Title,
		Type:      domain.RoomType(req.Type),
		Region:    domain.Region(req.Region),
		BeginTime: time.UnixMilli(req.BeginTime).UTC(),
		Docs:      docInputs(req.Docs),
	}
	if req.EndTime > 0 {
		in.EndTime = time.UnixMilli(req.EndTime).UTC()
	}
	res, err := h.rooms.Create(c.Request.Context(), userUUID, in)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, dto.CreateRoomResponse{RoomUUID: res.RoomUUID, InviteCode: res.InviteCode})
}

// CreatePeriodic 创建周期房间
func (h *RoomHandler) CreatePeriodic(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.ScheduleRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}

	in := service.ScheduleRoomInput{
		Title:             req.Title,
		Type:              domain.RoomType(req.Type),
		Region:            domain.Region(req.Region),
		BeginTime:         time.UnixMilli(req.BeginTime).UTC(),
		EndTime:           time.UnixMilli(req.EndTime).UTC(),
		Weeks:             weekdays(req.Periodic.Weeks),
		Rate:              req.Periodic.Rate,
		RecurrenceEndTime: recurrenceEnd(req.Periodic),
		Docs:              docInputs(req.Docs),
	}
	res, err := h.rooms.Schedule(c.Request.Context(), userUUID, in)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"user_uuid":     userUUID,
		"periodic_uuid": res.PeriodicUUID,
		"occurrences":   res.Occurrences,
	}).Debug("Periodic room scheduled")
	SuccessResponse(c, dto.CreateRoomResponse{
		RoomUUID:     res.RoomUUID,
		PeriodicUUID: res.PeriodicUUID,
		InviteCode:   res.InviteCode,
	})
}

// Join 加入房间
func (h *RoomHandler) Join(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	res, err := h.rooms.Join(c.Request.Context(), userUUID, req.UUID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, dto.JoinRoomResponse{
		RoomUUID:            res.RoomUUID,
		PeriodicUUID:        res.PeriodicUUID,
		OwnerUUID:           res.OwnerUUID,
		RoomType:            string(res.RoomType),
		Region:              string(res.Region),
		WhiteboardRoomUUID:  res.WhiteboardRoomUUID,
		WhiteboardRoomToken: res.WhiteboardRoomToken,
		RtcUID:              res.RtcUID,
		RtcToken:            res.RtcToken,
		RtmToken:            res.RtmToken,
	})
}

// Info 房间详情
func (h *RoomHandler) Info(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.RoomUUIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	info, err := h.rooms.Info(c.Request.Context(), req.RoomUUID, userUUID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, dto.RoomInfoResponse{
		RoomUUID:     info.RoomUUID,
		PeriodicUUID: info.PeriodicUUID,
		OwnerUUID:    info.OwnerUUID,
		Title:        info.Title,
		RoomType:     string(info.RoomType),
		RoomStatus:   string(info.RoomStatus),
		Region:       string(info.Region),
		BeginTime:    info.BeginTime,
		EndTime:      info.EndTime,
		InviteCode:   info.InviteCode,
		OnlineCount:  info.OnlineCount,
	})
}

// PeriodicInfo 周期系列详情
func (h *RoomHandler) PeriodicInfo(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.PeriodicUUIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	info, err := h.rooms.PeriodicInfo(c.Request.Context(), req.PeriodicUUID, userUUID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	rooms := make([]dto.PeriodicRoomItem, 0, len(info.Rooms))
	for _, r := range info.Rooms {
		rooms = append(rooms, dto.PeriodicRoomItem{
			RoomUUID:   r.RoomUUID,
			RoomStatus: string(r.RoomStatus),
			BeginTime:  r.BeginTime,
			EndTime:    r.EndTime,
		})
	}
	SuccessResponse(c, dto.PeriodicInfoResponse{
		PeriodicUUID:   info.PeriodicUUID,
		OwnerUUID:      info.OwnerUUID,
		Title:          info.Title,
		RoomType:       string(info.RoomType),
		Region:         string(info.Region),
		Rate:           info.Rate,
		EndTime:        info.EndTime,
		PeriodicStatus: string(info.PeriodicStatus),
		Rooms:          rooms,
	})
}

// List 房间列表，:type 取 all/today/periodic/history
func (h *RoomHandler) List(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var q dto.RoomListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		BindError(c, err)
		return
	}
	if q.Size == 0 {
		q.Size = defaultPageSize
	}
	rooms, err := h.rooms.List(c.Request.Context(), userUUID, repository.RoomListFilter(c.Param("type")), q.Page, q.Size)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	items := make([]dto.RoomListItem, 0, len(rooms))
	for _, r := range rooms {
		items = append(items, dto.RoomListItem{
			RoomUUID:     r.RoomUUID,
			PeriodicUUID: r.PeriodicUUID,
			OwnerUUID:    r.OwnerUUID,
			Title:        r.Title,
			RoomType:     string(r.RoomType),
			RoomStatus:   string(r.RoomStatus),
			BeginTime:    r.BeginTime,
			EndTime:      r.EndTime,
		})
	}
	SuccessResponse(c, items)
}

// updateStatus 开始/暂停/结束共用同一个请求格式
func (h *RoomHandler) updateStatus(transition func(RoomService, context.Context, string, string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		userUUID, ok := currentUser(c)
		if !ok {
			return
		}
		var req dto.RoomUUIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			BindError(c, err)
			return
		}
		if err := transition(h.rooms, c.Request.Context(), req.RoomUUID, userUUID); err != nil {
			HandleServiceError(c, err)
			return
		}
		SuccessResponse(c, nil)
	}
}

// Cancel 取消房间或退出房间
func (h *RoomHandler) Cancel(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.RoomUUIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	if err := h.rooms.Cancel(c.Request.Context(), req.RoomUUID, userUUID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, nil)
}

// CancelPeriodic 创建者取消整个系列，其他成员退出系列
func (h *RoomHandler) CancelPeriodic(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.PeriodicUUIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	if err := h.rooms.CancelPeriodic(c.Request.Context(), req.PeriodicUUID, userUUID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, nil)
}

// UpdateOrdinary 编辑普通房间
func (h *RoomHandler) UpdateOrdinary(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.UpdateOrdinaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	err := h.rooms.UpdateOrdinary(c.Request.Context(), userUUID, req.RoomUUID, service.UpdateRoomInput{
		Title:     req.Title,
		Type:      domain.RoomType(req.Type),
		BeginTime: time.UnixMilli(req.BeginTime).UTC(),
		EndTime:   time.UnixMilli(req.EndTime).UTC(),
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, nil)
}

// UpdatePeriodic 编辑整个周期系列，返回替换后的当前房间
func (h *RoomHandler) UpdatePeriodic(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.UpdatePeriodicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	res, err := h.rooms.UpdatePeriodic(c.Request.Context(), userUUID, service.UpdatePeriodicInput{
		PeriodicUUID:      req.PeriodicUUID,
		Title:             req.Title,
		Type:              domain.RoomType(req.Type),
		BeginTime:         time.UnixMilli(req.BeginTime).UTC(),
		EndTime:           time.UnixMilli(req.EndTime).UTC(),
		Weeks:             weekdays(req.Periodic.Weeks),
		Rate:              req.Periodic.Rate,
		RecurrenceEndTime: recurrenceEnd(req.Periodic),
		Docs:              docInputs(req.Docs),
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, dto.CreateRoomResponse{
		RoomUUID:     res.RoomUUID,
		PeriodicUUID: res.PeriodicUUID,
		InviteCode:   res.InviteCode,
	})
}

// UpdatePeriodicSubRoom 修改系列中某一节课的时间
func (h *RoomHandler) UpdatePeriodicSubRoom(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.UpdatePeriodicSubRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	err := h.rooms.UpdatePeriodicSubRoom(c.Request.Context(), userUUID, req.PeriodicUUID, req.RoomUUID,
		time.UnixMilli(req.BeginTime).UTC(), time.UnixMilli(req.EndTime).UTC())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, nil)
}

// BanRooms 管理员批量封禁房间
func (h *RoomHandler) BanRooms(c *gin.Context) {
	var req dto.BanRoomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	banned, err := h.rooms.BanRooms(c.Request.Context(), req.RoomUUIDs)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	logrus.WithField("banned", banned).Info("Rooms banned by admin")
	if banned == nil {
		banned = []string{}
	}
	SuccessResponse(c, dto.BanRoomsResponse{Banned: banned})
}

func docInputs(docs []dto.DocDTO) []service.DocInput {
	out := make([]service.DocInput, 0, len(docs))
	for _, d := range docs {
		out = append(out, service.DocInput{DocUUID: d.UUID, DocType: domain.DocType(d.Type)})
	}
	return out
}

func weekdays(days []int) []time.Weekday {
	out := make([]time.Weekday, 0, len(days))
	for _, w := range days {
		out = append(out, time.Weekday(w))
	}
	return out
}

func recurrenceEnd(p dto.PeriodicDTO) *time.Time {
	if p.EndTime <= 0 {
		return nil
	}
	end := time.UnixMilli(p.EndTime).UTC()
	return &end
}

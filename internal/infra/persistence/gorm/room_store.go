package gormpersistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/repository"
)

// GormRoomStore 是 RoomStore 接口的 GORM 实现
type GormRoomStore struct {
	db *gorm.DB
}

// NewGormRoomStore 创建 GormRoomStore 实例
func NewGormRoomStore(db *gorm.DB) *GormRoomStore {
	if db == nil {
		panic("database connection cannot be nil for GormRoomStore")
	}
	return &GormRoomStore{db: db}
}

// Transaction 实现事务包装，fn 拿到的是绑定在同一事务上的 store
func (s *GormRoomStore) Transaction(ctx context.Context, fn func(tx repository.RoomStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRoomStore{db: tx})
	})
}

func (s *GormRoomStore) CreateRoom(ctx context.Context, room *domain.Room) error {
	err := s.db.WithContext(ctx).Create(room).Error
	return wrapError(err, "create room %s", room.RoomUUID)
}

func (s *GormRoomStore) FindRoom(ctx context.Context, roomUUID string) (*domain.Room, error) {
	var room domain.Room
	err := s.db.WithContext(ctx).
		Where("room_uuid = ? AND is_delete = ?", roomUUID, false).
		First(&room).Error
	if err != nil {
		return nil, wrapError(err, "find room %s", roomUUID)
	}
	return &room, nil
}

func (s *GormRoomStore) FindRoomForUpdate(ctx context.Context, roomUUID string) (*domain.Room, error) {
	var room domain.Room
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("room_uuid = ? AND is_delete = ?", roomUUID, false).
		First(&room).Error
	if err != nil {
		return nil, wrapError(err, "find room %s for update", roomUUID)
	}
	return &room, nil
}

func (s *GormRoomStore) FindRooms(ctx context.Context, roomUUIDs []string) ([]domain.Room, error) {
	var rooms []domain.Room
	if len(roomUUIDs) == 0 {
		return rooms, nil
	}
	err := s.db.WithContext(ctx).
		Where("room_uuid IN ? AND is_delete = ?", roomUUIDs, false).
		Find(&rooms).Error
	if err != nil {
		return nil, wrapError(err, "find rooms by uuids")
	}
	return rooms, nil
}

func (s *GormRoomStore) FindLiveRoomByPeriodic(ctx context.Context, periodicUUID string) (*domain.Room, error) {
	var room domain.Room
	err := s.db.WithContext(ctx).
		Where("periodic_uuid = ? AND is_delete = ?", periodicUUID, false).
		Where("room_status IN ?", []domain.RoomStatus{domain.RoomStatusIdle, domain.RoomStatusStarted, domain.RoomStatusPaused}).
		Order("begin_time ASC").
		First(&room).Error
	if err != nil {
		return nil, wrapError(err, "find live room of periodic %s", periodicUUID)
	}
	return &room, nil
}

func statusColumns(update repository.RoomStatusUpdate) map[string]interface{} {
	values := map[string]interface{}{"room_status": update.Status}
	if update.BeginTime != nil {
		values["begin_time"] = *update.BeginTime
	}
	if update.EndTime != nil {
		values["end_time"] = *update.EndTime
	}
	return values
}

func (s *GormRoomStore) UpdateRoomStatus(ctx context.Context, roomUUID string, update repository.RoomStatusUpdate) error {
	result := s.db.WithContext(ctx).Model(&domain.Room{}).
		Where("room_uuid = ? AND is_delete = ?", roomUUID, false).
		Updates(statusColumns(update))
	if result.Error != nil {
		return wrapError(result.Error, "update room %s status", roomUUID)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *GormRoomStore) UpdateRoom(ctx context.Context, roomUUID string, update repository.RoomUpdate) error {
	values := map[string]interface{}{}
	if update.Title != "" {
		values["title"] = update.Title
	}
	if update.RoomType != "" {
		values["room_type"] = update.RoomType
	}
	if !update.BeginTime.IsZero() {
		values["begin_time"] = update.BeginTime
	}
	if !update.EndTime.IsZero() {
		values["end_time"] = update.EndTime
	}
	if len(values) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Model(&domain.Room{}).
		Where("room_uuid = ? AND is_delete = ?", roomUUID, false).
		Updates(values)
	if result.Error != nil {
		return wrapError(result.Error, "update room %s", roomUUID)
	}
	if result.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *GormRoomStore) SoftDeleteRoom(ctx context.Context, roomUUID string) error {
	err := s.db.WithContext(ctx).Model(&domain.Room{}).
		Where("room_uuid = ?", roomUUID).
		Update("is_delete", true).Error
	return wrapError(err, "soft delete room %s", roomUUID)
}

func (s *GormRoomStore) ListUserRooms(ctx context.Context, query repository.RoomListQuery) ([]domain.Room, error) {
	q := s.db.WithContext(ctx).Model(&domain.Room{}).
		Select("rooms.*").
		Joins("INNER JOIN room_users ru ON ru.room_uuid = rooms.room_uuid").
		Where("ru.user_uuid = ? AND ru.is_delete = ? AND rooms.is_delete = ?", query.UserUUID, false, false)

	switch query.Filter {
	case repository.RoomListHistory:
		q = q.Where("rooms.room_status = ?", domain.RoomStatusStopped).Order("rooms.begin_time DESC")
	case repository.RoomListToday:
		q = q.Where("rooms.room_status <> ?", domain.RoomStatusStopped).
			Where("rooms.begin_time >= ? AND rooms.begin_time < ?", query.DayStart, query.DayEnd).
			Order("rooms.begin_time ASC")
	case repository.RoomListPeriodic:
		q = q.Where("rooms.room_status <> ? AND rooms.periodic_uuid <> ''", domain.RoomStatusStopped).
			Order("rooms.begin_time ASC")
	default:
		q = q.Where("rooms.room_status <> ?", domain.RoomStatusStopped).Order("rooms.begin_time ASC")
	}

	var rooms []domain.Room
	err := q.Order("rooms.id ASC").
		Offset((query.Page - 1) * query.Size).
		Limit(query.Size).
		Find(&rooms).Error
	if err != nil {
		return nil, wrapError(err, "list rooms of user %s", query.UserUUID)
	}
	return rooms, nil
}

func (s *GormRoomStore) CreatePeriodicConfig(ctx context.Context, config *domain.RoomPeriodicConfig) error {
	err := s.db.WithContext(ctx).Create(config).Error
	return wrapError(err, "create periodic config %s", config.PeriodicUUID)
}

func (s *GormRoomStore) FindPeriodicConfig(ctx context.Context, periodicUUID string) (*domain.RoomPeriodicConfig, error) {
	var config domain.RoomPeriodicConfig
	err := s.db.WithContext(ctx).
		Where("periodic_uuid = ? AND is_delete = ?", periodicUUID, false).
		First(&config).Error
	if err != nil {
		return nil, wrapError(err, "find periodic config %s", periodicUUID)
	}
	return &config, nil
}

func (s *GormRoomStore) SavePeriodicConfig(ctx context.Context, config *domain.RoomPeriodicConfig) error {
	err := s.db.WithContext(ctx).Model(&domain.RoomPeriodicConfig{}).
		Where("periodic_uuid = ? AND is_delete = ?", config.PeriodicUUID, false).
		Updates(map[string]interface{}{
			"title":             config.Title,
			"room_type":         config.RoomType,
			"rate":              config.Rate,
			"end_time":          config.EndTime,
			"origin_begin_time": config.OriginBeginTime,
			"origin_end_time":   config.OriginEndTime,
		}).Error
	return wrapError(err, "save periodic config %s", config.PeriodicUUID)
}

func (s *GormRoomStore) UpdatePeriodicStatus(ctx context.Context, periodicUUID string, from, to domain.PeriodicStatus) (bool, error) {
	result := s.db.WithContext(ctx).Model(&domain.RoomPeriodicConfig{}).
		Where("periodic_uuid = ? AND periodic_status = ? AND is_delete = ?", periodicUUID, from, false).
		Update("periodic_status", to)
	if result.Error != nil {
		return false, wrapError(result.Error, "update periodic %s status %s -> %s", periodicUUID, from, to)
	}
	return result.RowsAffected > 0, nil
}

func (s *GormRoomStore) CreatePeriodics(ctx context.Context, periodics []domain.RoomPeriodic) error {
	if len(periodics) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Create(&periodics).Error
	return wrapError(err, "create %d periodic rooms", len(periodics))
}

func (s *GormRoomStore) FindPeriodic(ctx context.Context, fakeRoomUUID string) (*domain.RoomPeriodic, error) {
	var periodic domain.RoomPeriodic
	err := s.db.WithContext(ctx).
		Where("fake_room_uuid = ? AND is_delete = ?", fakeRoomUUID, false).
		First(&periodic).Error
	if err != nil {
		return nil, wrapError(err, "find periodic room %s", fakeRoomUUID)
	}
	return &periodic, nil
}

func (s *GormRoomStore) ListPeriodics(ctx context.Context, periodicUUID string) ([]domain.RoomPeriodic, error) {
	var periodics []domain.RoomPeriodic
	err := s.db.WithContext(ctx).
		Where("periodic_uuid = ? AND is_delete = ?", periodicUUID, false).
		Order("begin_time ASC").Order("id ASC").
		Find(&periodics).Error
	if err != nil {
		return nil, wrapError(err, "list periodic rooms of %s", periodicUUID)
	}
	return periodics, nil
}

func (s *GormRoomStore) UpdatePeriodicRoom(ctx context.Context, fakeRoomUUID string, update repository.RoomStatusUpdate) error {
	err := s.db.WithContext(ctx).Model(&domain.RoomPeriodic{}).
		Where("fake_room_uuid = ? AND is_delete = ?", fakeRoomUUID, false).
		Updates(statusColumns(update)).Error
	return wrapError(err, "update periodic room %s", fakeRoomUUID)
}

func (s *GormRoomStore) UpdatePeriodicTimes(ctx context.Context, fakeRoomUUID string, begin, end time.Time) error {
	err := s.db.WithContext(ctx).Model(&domain.RoomPeriodic{}).
		Where("fake_room_uuid = ? AND is_delete = ?", fakeRoomUUID, false).
		Updates(map[string]interface{}{"begin_time": begin, "end_time": end}).Error
	return wrapError(err, "update periodic room %s times", fakeRoomUUID)
}

func (s *GormRoomStore) SoftDeletePendingPeriodics(ctx context.Context, periodicUUID string) error {
	err := s.db.WithContext(ctx).Model(&domain.RoomPeriodic{}).
		Where("periodic_uuid = ? AND room_status <> ? AND is_delete = ?", periodicUUID, domain.RoomStatusStopped, false).
		Update("is_delete", true).Error
	return wrapError(err, "soft delete pending rooms of periodic %s", periodicUUID)
}

func (s *GormRoomStore) FindNextPeriodic(ctx context.Context, periodicUUID, excludeFakeRoomUUID string, after time.Time) (*domain.RoomPeriodic, error) {
	var periodic domain.RoomPeriodic
	err := s.db.WithContext(ctx).
		Where("periodic_uuid = ? AND room_status = ? AND is_delete = ?", periodicUUID, domain.RoomStatusIdle, false).
		Where("fake_room_uuid <> ?", excludeFakeRoomUUID).
		Where("end_time >= ?", after).
		Order("end_time ASC").Order("id ASC").
		First(&periodic).Error
	if err != nil {
		return nil, wrapError(err, "find next periodic room of %s", periodicUUID)
	}
	return &periodic, nil
}

func (s *GormRoomStore) AddRoomUsers(ctx context.Context, users []domain.RoomUser) error {
	if len(users) == 0 {
		return nil
	}
	// 冲突时只恢复 is_delete，保留原有的 rtc_uid
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_uuid"}, {Name: "user_uuid"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_delete"}),
	}).Create(&users).Error
	return wrapError(err, "add %d room users", len(users))
}

func (s *GormRoomStore) FindRoomUser(ctx context.Context, roomUUID, userUUID string) (*domain.RoomUser, error) {
	var user domain.RoomUser
	err := s.db.WithContext(ctx).
		Where("room_uuid = ? AND user_uuid = ? AND is_delete = ?", roomUUID, userUUID, false).
		First(&user).Error
	if err != nil {
		return nil, wrapError(err, "find room user %s/%s", roomUUID, userUUID)
	}
	return &user, nil
}

func (s *GormRoomStore) RemoveRoomUsers(ctx context.Context, roomUUID string, userUUIDs []string) error {
	q := s.db.WithContext(ctx).Model(&domain.RoomUser{}).Where("room_uuid = ?", roomUUID)
	if len(userUUIDs) > 0 {
		q = q.Where("user_uuid IN ?", userUUIDs)
	}
	err := q.Update("is_delete", true).Error
	return wrapError(err, "remove users of room %s", roomUUID)
}

func (s *GormRoomStore) MoveRoomUsers(ctx context.Context, fromRoomUUID, toRoomUUID string) error {
	err := s.db.WithContext(ctx).Model(&domain.RoomUser{}).
		Where("room_uuid = ? AND is_delete = ?", fromRoomUUID, false).
		Update("room_uuid", toRoomUUID).Error
	return wrapError(err, "move users of room %s to %s", fromRoomUUID, toRoomUUID)
}

func (s *GormRoomStore) AddPeriodicUsers(ctx context.Context, users []domain.RoomPeriodicUser) error {
	if len(users) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "periodic_uuid"}, {Name: "user_uuid"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_delete"}),
	}).Create(&users).Error
	return wrapError(err, "add %d periodic users", len(users))
}

func (s *GormRoomStore) ListPeriodicUsers(ctx context.Context, periodicUUID string) ([]domain.RoomPeriodicUser, error) {
	var users []domain.RoomPeriodicUser
	err := s.db.WithContext(ctx).
		Where("periodic_uuid = ? AND is_delete = ?", periodicUUID, false).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, wrapError(err, "list users of periodic %s", periodicUUID)
	}
	return users, nil
}

func (s *GormRoomStore) RemovePeriodicUsers(ctx context.Context, periodicUUID string, userUUIDs []string) error {
	q := s.db.WithContext(ctx).Model(&domain.RoomPeriodicUser{}).Where("periodic_uuid = ?", periodicUUID)
	if len(userUUIDs) > 0 {
		q = q.Where("user_uuid IN ?", userUUIDs)
	}
	err := q.Update("is_delete", true).Error
	return wrapError(err, "remove users of periodic %s", periodicUUID)
}

func (s *GormRoomStore) CreateRoomDocs(ctx context.Context, docs []domain.RoomDoc) error {
	if len(docs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Create(&docs).Error
	return wrapError(err, "create %d room docs", len(docs))
}

func (s *GormRoomStore) ListPeriodicDocs(ctx context.Context, periodicUUID string) ([]domain.RoomDoc, error) {
	var docs []domain.RoomDoc
	err := s.db.WithContext(ctx).
		Where("periodic_uuid = ? AND is_delete = ?", periodicUUID, false).
		Order("id ASC").
		Find(&docs).Error
	if err != nil {
		return nil, wrapError(err, "list docs of periodic %s", periodicUUID)
	}
	return docs, nil
}

func (s *GormRoomStore) RemovePeriodicDocs(ctx context.Context, periodicUUID string, docUUIDs []string) error {
	if len(docUUIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&domain.RoomDoc{}).
		Where("periodic_uuid = ? AND doc_uuid IN ?", periodicUUID, docUUIDs).
		Update("is_delete", true).Error
	return wrapError(err, "remove %d docs of periodic %s", len(docUUIDs), periodicUUID)
}

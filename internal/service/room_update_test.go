package service_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/repository"
	"github.com/netless-io/flat-server-sub001/internal/service"
)

func TestRoomService_UpdateOrdinary(t *testing.T) {
	env := newRoomEnv(t)
	ctx := context.Background()
	res := env.createRoom(t, "owner")

	err := env.svc.UpdateOrdinary(ctx, "owner", res.RoomUUID, service.UpdateRoomInput{
		Title:     "physics",
		Type:      domain.RoomTypeBigClass,
		BeginTime: env.now.Add(2 * time.Hour),
		EndTime:   env.now.Add(3 * time.Hour),
	})
	require.NoError(t, err)

	room, err := env.store.FindRoom(ctx, res.RoomUUID)
	require.NoError(t, err)
	assert.Equal(t, "physics", room.Title)
	assert.Equal(t, domain.RoomTypeBigClass, room.RoomType)
	assert.True(t, room.BeginTime.Equal(env.now.Add(2*time.Hour)))
	assert.True(t, room.EndTime.Equal(env.now.Add(3*time.Hour)))

	env.events.AssertCalled(t, "PublishRoomEvent", mock.Anything, mock.MatchedBy(func(e domain.RoomEvent) bool {
		return e.Type == domain.RoomEventUpdated && e.RoomUUID == res.RoomUUID
	}))

	// 时间不变时只改标题，不受开始时间已过去的限制
	env.now = env.now.Add(3 * time.Hour)
	err = env.svc.UpdateOrdinary(ctx, "owner", res.RoomUUID, service.UpdateRoomInput{
		Title:     "chemistry",
		Type:      domain.RoomTypeBigClass,
		BeginTime: room.BeginTime,
		EndTime:   room.EndTime,
	})
	require.NoError(t, err)
}

func TestRoomService_UpdateOrdinary_Rejections(t *testing.T) {
	env := newRoomEnv(t)
	ctx := context.Background()
	res := env.createRoom(t, "owner")
	valid := service.UpdateRoomInput{
		Title:     "physics",
		Type:      domain.RoomTypeSmallClass,
		BeginTime: env.now.Add(2 * time.Hour),
		EndTime:   env.now.Add(3 * time.Hour),
	}

	assert.ErrorIs(t, env.svc.UpdateOrdinary(ctx, "guest", res.RoomUUID, valid), service.ErrRoomNotFound)
	assert.ErrorIs(t, env.svc.UpdateOrdinary(ctx, "owner", "missing", valid), service.ErrRoomNotFound)

	short := valid
	short.EndTime = short.BeginTime.Add(10 * time.Minute)
	assert.ErrorIs(t, env.svc.UpdateOrdinary(ctx, "owner", res.RoomUUID, short), service.ErrParamsCheckFailed)

	past := valid
	past.BeginTime = env.now.Add(-time.Hour)
	assert.ErrorIs(t, env.svc.UpdateOrdinary(ctx, "owner", res.RoomUUID, past), service.ErrParamsCheckFailed)

	untitled := valid
	untitled.Title = ""
	assert.ErrorIs(t, env.svc.UpdateOrdinary(ctx, "owner", res.RoomUUID, untitled), service.ErrParamsCheckFailed)

	periodic := env.schedule(t, "owner", 2)
	assert.ErrorIs(t, env.svc.UpdateOrdinary(ctx, "owner", periodic.RoomUUID, valid), service.ErrParamsCheckFailed)

	require.NoError(t, env.svc.Start(ctx, res.RoomUUID, "owner"))
	assert.ErrorIs(t, env.svc.UpdateOrdinary(ctx, "owner", res.RoomUUID, valid), service.ErrRoomNotIsIdle)
}

func TestRoomService_UpdatePeriodic(t *testing.T) {
	env := newRoomEnv(t)
	ctx := context.Background()

	res, err := env.svc.Schedule(ctx, "owner", service.ScheduleRoomInput{
		Title:     "weekly",
		Type:      domain.RoomTypeBigClass,
		Region:    domain.RegionCNHZ,
		BeginTime: env.now.Add(time.Hour),
		EndTime:   env.now.Add(2 * time.Hour),
		Weeks:     []time.Weekday{time.Monday, time.Tuesday},
		Rate:      3,
		Docs: []service.DocInput{
			{DocUUID: "doc-1", DocType: domain.DocTypeStatic},
			{DocUUID: "doc-2", DocType: domain.DocTypeDynamic},
		},
	})
	require.NoError(t, err)
	_, err = env.svc.Join(ctx, "guest", res.PeriodicUUID)
	require.NoError(t, err)

	begin := env.now.Add(3 * time.Hour)
	updated, err := env.svc.UpdatePeriodic(ctx, "owner", service.UpdatePeriodicInput{
		PeriodicUUID: res.PeriodicUUID,
		Title:        "weekly v2",
		Type:         domain.RoomTypeSmallClass,
		BeginTime:    begin,
		EndTime:      begin.Add(time.Hour),
		Weeks:        []time.Weekday{time.Monday, time.Wednesday},
		Rate:         4,
		Docs: []service.DocInput{
			{DocUUID: "doc-2", DocType: domain.DocTypeDynamic},
			{DocUUID: "doc-3", DocType: domain.DocTypeStatic},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Occurrences)
	assert.NotEqual(t, res.RoomUUID, updated.RoomUUID)

	// 旧房间被替换，成员迁移到新的第一节课
	_, err = env.store.FindRoom(ctx, res.RoomUUID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	room, err := env.store.FindRoom(ctx, updated.RoomUUID)
	require.NoError(t, err)
	assert.Equal(t, "weekly v2", room.Title)
	assert.True(t, room.BeginTime.Equal(begin))
	for _, user := range []string{"owner", "guest"} {
		_, err = env.store.FindRoomUser(ctx, updated.RoomUUID, user)
		assert.NoError(t, err, user)
	}

	periodics, err := env.store.ListPeriodics(ctx, res.PeriodicUUID)
	require.NoError(t, err)
	require.Len(t, periodics, 4)
	assert.Equal(t, updated.RoomUUID, periodics[0].FakeRoomUUID)
	assert.Equal(t, time.Wednesday, periodics[1].BeginTime.Weekday())

	config, err := env.store.FindPeriodicConfig(ctx, res.PeriodicUUID)
	require.NoError(t, err)
	assert.Equal(t, 4, config.Rate)
	assert.True(t, config.OriginBeginTime.Equal(begin))
	assert.True(t, config.EndTime.Equal(periodics[3].EndTime))

	docs, err := env.store.ListPeriodicDocs(ctx, res.PeriodicUUID)
	require.NoError(t, err)
	var docUUIDs []string
	for _, d := range docs {
		docUUIDs = append(docUUIDs, d.DocUUID)
	}
	sort.Strings(docUUIDs)
	assert.Equal(t, []string{"doc-2", "doc-3"}, docUUIDs)

	env.dispatcher.AssertNumberOfCalls(t, "BanWhiteboard", 1)
	env.events.AssertCalled(t, "PublishRoomEvent", mock.Anything, mock.MatchedBy(func(e domain.RoomEvent) bool {
		return e.Type == domain.RoomEventUpdated && e.RoomUUID == res.RoomUUID && e.NextRoomUUID == updated.RoomUUID
	}))
}

func TestRoomService_UpdatePeriodic_Rejections(t *testing.T) {
	env := newRoomEnv(t)
	ctx := context.Background()
	res := env.schedule(t, "owner", 3)
	input := func() service.UpdatePeriodicInput {
		return service.UpdatePeriodicInput{
			PeriodicUUID: res.PeriodicUUID,
			Title:        "weekly",
			Type:         domain.RoomTypeBigClass,
			BeginTime:    env.now.Add(3 * time.Hour),
			EndTime:      env.now.Add(4 * time.Hour),
			Weeks:        []time.Weekday{time.Monday},
			Rate:         2,
		}
	}

	_, err := env.svc.UpdatePeriodic(ctx, "guest", input())
	assert.ErrorIs(t, err, service.ErrPeriodicNotFound)

	missing := input()
	missing.PeriodicUUID = "missing"
	_, err = env.svc.UpdatePeriodic(ctx, "owner", missing)
	assert.ErrorIs(t, err, service.ErrPeriodicNotFound)

	past := input()
	past.BeginTime = env.now.Add(-time.Hour)
	_, err = env.svc.UpdatePeriodic(ctx, "owner", past)
	assert.ErrorIs(t, err, service.ErrParamsCheckFailed)

	noRule := input()
	noRule.Rate = 0
	_, err = env.svc.UpdatePeriodic(ctx, "owner", noRule)
	assert.ErrorIs(t, err, service.ErrParamsCheckFailed)

	// 正在上课时不能修改系列，预先创建的白板房间被封禁
	require.NoError(t, env.svc.Start(ctx, res.RoomUUID, "owner"))
	_, err = env.svc.UpdatePeriodic(ctx, "owner", input())
	assert.ErrorIs(t, err, service.ErrPeriodicSubRoomHasRunning)
	env.dispatcher.AssertCalled(t, "BanWhiteboard", mock.Anything, domain.RegionCNHZ, "wb-room")

	_, err = env.store.FindRoom(ctx, res.RoomUUID)
	assert.NoError(t, err, "失败时原房间保持不变")
}

func TestRoomService_UpdatePeriodicSubRoom(t *testing.T) {
	env := newRoomEnv(t)
	ctx := context.Background()
	res := env.schedule(t, "owner", 3)

	periodics, err := env.store.ListPeriodics(ctx, res.PeriodicUUID)
	require.NoError(t, err)
	require.Len(t, periodics, 3)

	// 未物化的课只改计划时间
	second := periodics[1]
	begin, end := second.BeginTime.Add(2*time.Hour), second.EndTime.Add(2*time.Hour)
	require.NoError(t, env.svc.UpdatePeriodicSubRoom(ctx, "owner", res.PeriodicUUID, second.FakeRoomUUID, begin, end))
	got, err := env.store.FindPeriodic(ctx, second.FakeRoomUUID)
	require.NoError(t, err)
	assert.True(t, got.BeginTime.Equal(begin))
	assert.True(t, got.EndTime.Equal(end))

	// 已物化的课同步修改房间
	first := periodics[0]
	begin, end = first.BeginTime.Add(30*time.Minute), first.EndTime.Add(30*time.Minute)
	require.NoError(t, env.svc.UpdatePeriodicSubRoom(ctx, "owner", res.PeriodicUUID, first.FakeRoomUUID, begin, end))
	room, err := env.store.FindRoom(ctx, first.FakeRoomUUID)
	require.NoError(t, err)
	assert.True(t, room.BeginTime.Equal(begin))
	assert.True(t, room.EndTime.Equal(end))
}

func TestRoomService_UpdatePeriodicSubRoom_Rejections(t *testing.T) {
	env := newRoomEnv(t)
	ctx := context.Background()
	res := env.schedule(t, "owner", 3)

	periodics, err := env.store.ListPeriodics(ctx, res.PeriodicUUID)
	require.NoError(t, err)
	first, second, third := periodics[0], periodics[1], periodics[2]

	cases := map[string]struct {
		user, roomUUID string
		begin, end     time.Time
		want           error
	}{
		"not owner":             {"guest", second.FakeRoomUUID, second.BeginTime, second.EndTime.Add(time.Minute), service.ErrPeriodicNotFound},
		"unknown occurrence":    {"owner", "missing", second.BeginTime, second.EndTime, service.ErrRoomNotFound},
		"shorter than 15 min":   {"owner", second.FakeRoomUUID, second.BeginTime, second.BeginTime.Add(10 * time.Minute), service.ErrParamsCheckFailed},
		"before previous begin": {"owner", second.FakeRoomUUID, first.BeginTime, second.EndTime, service.ErrParamsCheckFailed},
		"after next end":        {"owner", second.FakeRoomUUID, second.BeginTime, third.EndTime, service.ErrParamsCheckFailed},
		"first begins in past":  {"owner", first.FakeRoomUUID, env.now.Add(-time.Hour), first.EndTime, service.ErrParamsCheckFailed},
		"end before begin":      {"owner", third.FakeRoomUUID, third.EndTime, third.BeginTime, service.ErrParamsCheckFailed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := env.svc.UpdatePeriodicSubRoom(ctx, tc.user, res.PeriodicUUID, tc.roomUUID, tc.begin, tc.end)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	require.NoError(t, env.svc.Start(ctx, first.FakeRoomUUID, "owner"))
	err = env.svc.UpdatePeriodicSubRoom(ctx, "owner", res.PeriodicUUID, first.FakeRoomUUID, first.BeginTime, first.EndTime.Add(time.Hour))
	assert.ErrorIs(t, err, service.ErrRoomNotIsIdle)
}

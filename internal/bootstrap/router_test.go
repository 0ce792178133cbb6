package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/hub"
	"github.com/netless-io/flat-server-sub001/internal/repository"
	"github.com/netless-io/flat-server-sub001/internal/service"
)

// stubRooms 只实现路由测试用到的行为
type stubRooms struct{}

func (stubRooms) Create(context.Context, string, service.CreateRoomInput) (*service.CreateRoomResult, error) {
	return nil, service.ErrParamsCheckFailed
}
func (stubRooms) Schedule(context.Context, string, service.ScheduleRoomInput) (*service.ScheduleRoomResult, error) {
	return nil, service.ErrParamsCheckFailed
}
func (stubRooms) Join(context.Context, string, string) (*service.JoinResult, error) {
	return nil, service.ErrRoomNotFound
}
func (stubRooms) Info(context.Context, string, string) (*service.RoomInfo, error) {
	return nil, service.ErrRoomNotFound
}
func (stubRooms) PeriodicInfo(context.Context, string, string) (*service.PeriodicInfo, error) {
	return nil, service.ErrPeriodicNotFound
}
func (stubRooms) List(context.Context, string, repository.RoomListFilter, int, int) ([]domain.Room, error) {
	return []domain.Room{}, nil
}
func (stubRooms) Start(context.Context, string, string) error  { return nil }
func (stubRooms) Pause(context.Context, string, string) error  { return nil }
func (stubRooms) Stop(context.Context, string, string) error   { return nil }
func (stubRooms) Cancel(context.Context, string, string) error { return nil }
func (stubRooms) CancelPeriodic(context.Context, string, string) error {
	return service.ErrPeriodicNotFound
}
func (stubRooms) UpdateOrdinary(context.Context, string, string, service.UpdateRoomInput) error {
	return service.ErrRoomNotIsIdle
}
func (stubRooms) UpdatePeriodic(context.Context, string, service.UpdatePeriodicInput) (*service.ScheduleRoomResult, error) {
	return nil, service.ErrPeriodicSubRoomHasRunning
}
func (stubRooms) UpdatePeriodicSubRoom(context.Context, string, string, string, time.Time, time.Time) error {
	return nil
}
func (stubRooms) BanRooms(context.Context, []string) ([]string, error) {
	return []string{}, nil
}

type stubFiles struct{}

func (stubFiles) List(context.Context, string, string, int, int, repository.ListOrder) (*service.ListResult, error) {
	return &service.ListResult{}, nil
}
func (stubFiles) CreateDirectory(context.Context, string, string, string) (*domain.CloudStorageFile, error) {
	return nil, service.ErrDirectoryAlreadyExists
}
func (stubFiles) Rename(context.Context, string, string, string) error { return nil }
func (stubFiles) Move(context.Context, string, []string, string) error { return nil }
func (stubFiles) Delete(context.Context, string, []string) error       { return nil }
func (stubFiles) UploadCancel(context.Context, string, []string) error { return nil }
func (stubFiles) ConvertFinish(context.Context, string, string) error  { return nil }
func (stubFiles) UploadFinish(context.Context, string, string) (*domain.CloudStorageFile, error) {
	return nil, service.ErrFileNotFound
}
func (stubFiles) UploadStart(context.Context, string, service.UploadStartInput) (*service.UploadStartResult, error) {
	return nil, service.ErrFileSizeTooBig
}
func (stubFiles) AddURLFile(context.Context, string, string, string, string) (*domain.CloudStorageFile, error) {
	return nil, service.ErrDirectoryNotExists
}
func (stubFiles) ConvertStart(context.Context, string, string) (*service.ConvertStartResult, error) {
	return nil, service.ErrFileNotIsConvertNone
}

type nopPublisher struct{}

func (nopPublisher) PublishRoomEvent(context.Context, domain.RoomEvent) error { return nil }

type nopPresence struct{}

func (nopPresence) Join(context.Context, string, string, time.Time) error { return nil }
func (nopPresence) Leave(context.Context, string, string) error           { return nil }
func (nopPresence) Count(context.Context, string) (int64, error)          { return 0, nil }

func newTestRouter(t *testing.T, adminSecret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &Config{
		JWT:       JWTConfig{Secret: "secret"},
		Admin:     AdminConfig{Secret: adminSecret},
		Redis:     RedisConfig{KeyPrefix: "test:"},
		RateLimit: RateLimitConfig{Max: 100, Window: time.Second},
		CORS:      CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	router, err := NewRouter(cfg, log, client, Services{
		Rooms:        stubRooms{},
		CloudStorage: stubFiles{},
		Hub:          hub.NewHub(nopPresence{}, nopPublisher{}),
	})
	require.NoError(t, err)
	return router
}

func bearer(t *testing.T) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_uuid": "u-1",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t, "admin")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		auth   bool
		header map[string]string
		status int
	}{
		{"health", http.MethodGet, "/health-check", "", false, nil, http.StatusOK},
		{"requires login", http.MethodGet, "/v1/room/list/all?page=1", "", false, nil, http.StatusUnauthorized},
		{"room list", http.MethodGet, "/v1/room/list/all?page=1", "", true, nil, http.StatusOK},
		{"join unknown", http.MethodPost, "/v1/room/join", `{"uuid":"x"}`, true, nil, http.StatusNotFound},
		{"cloud list", http.MethodGet, "/v1/cloud-storage/list?directoryPath=/&page=1", "", true, nil, http.StatusOK},
		{"admin without secret", http.MethodPost, "/v1/admin/room/ban", `{"roomUUIDs":["r"]}`, false, nil, http.StatusForbidden},
		{"admin with secret", http.MethodPost, "/v1/admin/room/ban", `{"roomUUIDs":["r"]}`, false, map[string]string{"X-Admin-Secret": "admin"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.auth {
				req.Header.Set("Authorization", bearer(t))
			}
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestRouter_AdminDisabledWithoutSecret(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/room/ban", strings.NewReader(`{"roomUUIDs":["r"]}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodOptions, "/v1/room/join", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

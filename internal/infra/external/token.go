// Package external 实现对白板服务、文档转码服务和对象存储的访问，以及各类访问令牌的签发。
package external

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// 令牌中的角色
const (
	RoleAdmin  = "admin"
	RoleWriter = "writer"
	RoleReader = "reader"
)

// TokenService 用同一个密钥签发 HS256 令牌，令牌类型与角色写在 claims 里
type TokenService struct {
	secret  []byte
	roomTTL time.Duration
	taskTTL time.Duration
	now     func() time.Time
}

// NewTokenService 创建 TokenService 实例
func NewTokenService(secret string, roomTTL, taskTTL time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret cannot be empty")
	}
	if roomTTL <= 0 {
		roomTTL = 24 * time.Hour
	}
	if taskTTL <= 0 {
		taskTTL = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), roomTTL: roomTTL, taskTTL: taskTTL, now: time.Now}, nil
}

// SDKToken 访问白板服务端 API 使用的管理员令牌
func (s *TokenService) SDKToken() (string, error) {
	return s.sign(jwt.MapClaims{"kind": "sdk", "role": RoleAdmin}, time.Hour)
}

// RoomToken 白板房间的读写令牌
func (s *TokenService) RoomToken(whiteboardRoomUUID string) (string, error) {
	return s.sign(jwt.MapClaims{"kind": "room", "uuid": whiteboardRoomUUID, "role": RoleWriter}, s.roomTTL)
}

// TaskToken 查询转码结果使用的只读令牌
func (s *TokenService) TaskToken(taskUUID string) (string, error) {
	return s.sign(jwt.MapClaims{"kind": "task", "uuid": taskUUID, "role": RoleReader}, s.taskTTL)
}

// RTCToken 音视频频道令牌
func (s *TokenService) RTCToken(roomUUID, rtcUID string) (string, error) {
	return s.sign(jwt.MapClaims{"kind": "rtc", "channel": roomUUID, "uid": rtcUID, "role": RoleWriter}, s.roomTTL)
}

// RTMToken 信令令牌
func (s *TokenService) RTMToken(userUUID string) (string, error) {
	return s.sign(jwt.MapClaims{"kind": "rtm", "user_uuid": userUUID}, s.roomTTL)
}

// Parse 校验令牌并返回 claims
func (s *TokenService) Parse(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token or claims type")
	}
	return claims, nil
}

func (s *TokenService) sign(claims jwt.MapClaims, ttl time.Duration) (string, error) {
	now := s.now()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/service"
)

// ContextUserUUID Auth 写入 gin.Context 的键
const ContextUserUUID = "user_uuid"

// AdminSecretHeader 管理员接口使用的请求头
const AdminSecretHeader = "X-Admin-Secret"

// Auth 返回一个 Gin 中间件，用于验证 JWT token。
// jwtSecret: 用于验证签名的密钥，必须提供。
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		// 1. 从请求头提取 Token
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
			} else {
				logrus.WithError(err).Warn("Auth middleware: Malformed Authorization header")
			}
			abortNeedLogin(c)
			return
		}

		// 2. 验证 Token
		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("Auth middleware: Invalid token")

			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) {
				if validationError.Errors&jwt.ValidationErrorExpired != 0 {
					logCtx.Warn("Reason: Token is expired")
				}
				if validationError.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
					logCtx.Warn("Reason: Token signature is invalid")
				}
			}
			abortNeedLogin(c)
			return
		}

		// 3. 取出 user_uuid
		userUUID, ok := claims[ContextUserUUID].(string)
		if !ok || userUUID == "" {
			logrus.Warnf("Auth middleware: 'user_uuid' claim missing or invalid: %v", claims[ContextUserUUID])
			abortNeedLogin(c)
			return
		}

		c.Set(ContextUserUUID, userUUID)
		logrus.WithField("user_uuid", userUUID).Debug("Auth middleware: User authenticated via JWT")

		c.Next()
	}
}

// AdminSecret 管理员接口鉴权，请求头中的密钥必须与配置一致
func AdminSecret(secret string) gin.HandlerFunc {
	if secret == "" {
		panic("admin secret cannot be empty for AdminSecret middleware")
	}
	return func(c *gin.Context) {
		got := c.GetHeader(AdminSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			logrus.WithField("client_ip", c.ClientIP()).Warn("AdminSecret middleware: rejected admin request")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": 1, "code": int(service.CodeNotPermission)})
			return
		}
		c.Next()
	}
}

func abortNeedLogin(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": 1, "code": int(service.CodeNeedLoginAgain)})
}

// ErrMissingAuthHeader 缺少 Authorization 头
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// extractToken 从 Gin 上下文中提取 Bearer Token
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		// 浏览器的 websocket 无法设置请求头，允许放在查询参数里
		if t := c.Query("token"); t != "" {
			return t, nil
		}
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

// validateToken 解析并验证 JWT token 字符串
func validateToken(tokenStr string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token or claims type")
}

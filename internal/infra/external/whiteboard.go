package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/service"
)

// DefaultWhiteboardAPI 白板服务的默认地址
const DefaultWhiteboardAPI = "https://api.netless.link/v5"

// SDKTokenSource 提供访问白板服务端 API 的令牌
type SDKTokenSource interface {
	SDKToken() (string, error)
}

// WhiteboardClient 白板服务的 HTTP 客户端，负责白板房间和文档转码任务
type WhiteboardClient struct {
	baseURL string
	http    *http.Client
	tokens  SDKTokenSource
}

// NewWhiteboardClient 创建 WhiteboardClient 实例，baseURL 为空时使用默认地址
func NewWhiteboardClient(baseURL string, timeout time.Duration, tokens SDKTokenSource) *WhiteboardClient {
	if tokens == nil {
		panic("SDKTokenSource cannot be nil for WhiteboardClient")
	}
	if baseURL == "" {
		baseURL = DefaultWhiteboardAPI
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WhiteboardClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

type whiteboardRoom struct {
	UUID  string `json:"uuid"`
	IsBan bool   `json:"isBan"`
}

type conversionTask struct {
	UUID   string                `json:"uuid"`
	Status service.ConvertStatus `json:"status"`
}

// CreateRoom 创建白板房间，返回白板房间 UUID
func (c *WhiteboardClient) CreateRoom(ctx context.Context, region domain.Region) (string, error) {
	var room whiteboardRoom
	body := map[string]interface{}{"isRecord": true, "limit": 0}
	if err := c.do(ctx, http.MethodPost, "/rooms", region, body, &room); err != nil {
		return "", err
	}
	if room.UUID == "" {
		return "", fmt.Errorf("whiteboard: create room: empty uuid in response")
	}
	return room.UUID, nil
}

// BanRoom 封禁白板房间
func (c *WhiteboardClient) BanRoom(ctx context.Context, region domain.Region, whiteboardRoomUUID string) error {
	return c.do(ctx, http.MethodPatch, "/rooms/"+url.PathEscape(whiteboardRoomUUID), region, map[string]bool{"isBan": true}, nil)
}

// ConversionClient 通用文档转码。ppt/pptx 走动态转码，其余走静态转码。
type ConversionClient struct {
	*WhiteboardClient
}

// NewConversionClient 基于 WhiteboardClient 创建文档转码客户端
func NewConversionClient(wb *WhiteboardClient) *ConversionClient {
	return &ConversionClient{WhiteboardClient: wb}
}

// Create 创建转码任务
func (c *ConversionClient) Create(ctx context.Context, region domain.Region, resourceURL string) (string, error) {
	body := map[string]interface{}{"resource": resourceURL, "type": conversionType(resourceURL)}
	if body["type"] == "dynamic" {
		body["preview"] = true
		body["canvasVersion"] = false
	} else {
		body["scale"] = 1.2
		body["outputFormat"] = "png"
		body["pack"] = true
	}
	var task conversionTask
	if err := c.do(ctx, http.MethodPost, "/services/conversion/tasks", region, body, &task); err != nil {
		return "", err
	}
	return task.UUID, nil
}

// Query 查询转码任务状态
func (c *ConversionClient) Query(ctx context.Context, region domain.Region, taskUUID, resourceURL string) (service.ConvertStatus, error) {
	var task conversionTask
	p := "/services/conversion/tasks/" + url.PathEscape(taskUUID) + "?type=" + conversionType(resourceURL)
	if err := c.do(ctx, http.MethodGet, p, region, nil, &task); err != nil {
		return "", err
	}
	return normalizeStatus(task.Status), nil
}

// ProjectorClient 课件投影转码
type ProjectorClient struct {
	*WhiteboardClient
	region domain.Region
}

// NewProjectorClient 投影转码固定在 region 进行
func NewProjectorClient(wb *WhiteboardClient, region domain.Region) *ProjectorClient {
	return &ProjectorClient{WhiteboardClient: wb, region: region}
}

// Create 创建投影转码任务，参数中的 region 被忽略
func (c *ProjectorClient) Create(ctx context.Context, _ domain.Region, resourceURL string) (string, error) {
	var task conversionTask
	body := map[string]interface{}{"resource": resourceURL, "preview": true, "pack": false}
	if err := c.do(ctx, http.MethodPost, "/projector/tasks", c.region, body, &task); err != nil {
		return "", err
	}
	return task.UUID, nil
}

// Query 查询投影转码任务状态
func (c *ProjectorClient) Query(ctx context.Context, _ domain.Region, taskUUID, _ string) (service.ConvertStatus, error) {
	var task conversionTask
	if err := c.do(ctx, http.MethodGet, "/projector/tasks/"+url.PathEscape(taskUUID), c.region, nil, &task); err != nil {
		return "", err
	}
	return normalizeStatus(task.Status), nil
}

// normalizeStatus 转码服务可能返回 Abort，按失败处理
func normalizeStatus(s service.ConvertStatus) service.ConvertStatus {
	switch s {
	case service.ConvertWaiting, service.ConvertConverting, service.ConvertFinished:
		return s
	}
	return service.ConvertFail
}

func conversionType(resourceURL string) string {
	u := resourceURL
	if parsed, err := url.Parse(resourceURL); err == nil {
		u = parsed.Path
	}
	switch strings.ToLower(path.Ext(u)) {
	case ".ppt", ".pptx":
		return "dynamic"
	}
	return "static"
}

// do 发送请求，out 为 nil 时丢弃响应体
func (c *WhiteboardClient) do(ctx context.Context, method, p string, region domain.Region, in, out interface{}) error {
	token, err := c.tokens.SDKToken()
	if err != nil {
		return fmt.Errorf("whiteboard: sign sdk token: %w", err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("whiteboard: marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
	if err != nil {
		return fmt.Errorf("whiteboard: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("token", token)
	req.Header.Set("region", string(region))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whiteboard: %s %s: %w", method, p, err)
	}
	defer resp.Body.Close()

	logrus.WithFields(logrus.Fields{
		"method":     method,
		"path":       p,
		"status":     resp.StatusCode,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("Whiteboard API called")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whiteboard: %s %s: status %d: %s", method, p, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("whiteboard: decode response: %w", err)
	}
	return nil
}

package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/netless-io/flat-server-sub001/internal/domain"
	"github.com/netless-io/flat-server-sub001/internal/dto"
	"github.com/netless-io/flat-server-sub001/internal/repository"
	"github.com/netless-io/flat-server-sub001/internal/service"
)

// CloudStorageService CloudStorageHandler 依赖的云盘操作，由 *service.CloudStorageService 实现
type CloudStorageService interface {
	List(ctx context.Context, userUUID, directoryPath string, page, size int, order repository.ListOrder) (*service.ListResult, error)
	CreateDirectory(ctx context.Context, userUUID, parent, name string) (*domain.CloudStorageFile, error)
	Rename(ctx context.Context, userUUID, fileUUID, newName string) error
	Move(ctx context.Context, userUUID string, fileUUIDs []string, target string) error
	Delete(ctx context.Context, userUUID string, fileUUIDs []string) error
	UploadStart(ctx context.Context, userUUID string, in service.UploadStartInput) (*service.UploadStartResult, error)
	UploadFinish(ctx context.Context, userUUID, fileUUID string) (*domain.CloudStorageFile, error)
	UploadCancel(ctx context.Context, userUUID string, fileUUIDs []string) error
	AddURLFile(ctx context.Context, userUUID, fileName, fileURL, directoryPath string) (*domain.CloudStorageFile, error)
	ConvertStart(ctx context.Context, userUUID, fileUUID string) (*service.ConvertStartResult, error)
	ConvertFinish(ctx context.Context, userUUID, fileUUID string) error
}

// CloudStorageHandler 云盘相关的 HTTP 接口
type CloudStorageHandler struct {
	files CloudStorageService
}

// NewCloudStorageHandler 创建 CloudStorageHandler 实例
func NewCloudStorageHandler(files CloudStorageService) *CloudStorageHandler {
	if files == nil {
		panic("CloudStorageService cannot be nil for CloudStorageHandler")
	}
	return &CloudStorageHandler{files: files}
}

// Register 注册云盘路由，全部需要登录
func (h *CloudStorageHandler) Register(g *gin.RouterGroup) {
	cs := g.Group("/cloud-storage")
	cs.GET("/list", h.List)
	cs.POST("/directory/create", h.CreateDirectory)
	cs.POST("/rename", h.Rename)
	cs.POST("/move", h.Move)
	cs.POST("/delete", h.Delete)
	cs.POST("/upload/start", h.UploadStart)
	cs.POST("/upload/finish", h.UploadFinish)
	cs.POST("/upload/cancel", h.UploadCancel)
	cs.POST("/url-cloud/add", h.AddURLFile)
	cs.POST("/convert/start", h.ConvertStart)
	cs.POST("/convert/finish", h.ConvertFinish)
}

// List 列出目录
func (h *CloudStorageHandler) List(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var q dto.ListFilesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		BindError(c, err)
		return
	}
	if q.Size == 0 {
		q.Size = defaultPageSize
	}
	res, err := h.files.List(c.Request.Context(), userUUID, q.DirectoryPath, q.Page, q.Size, repository.ListOrder(q.Order))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	items := make([]dto.FileItem, 0, len(res.Files))
	for i := range res.Files {
		items = append(items, fileItem(&res.Files[i]))
	}
	SuccessResponse(c, dto.ListFilesResponse{TotalUsage: res.TotalUsage, Files: items})
}

// CreateDirectory 新建目录
func (h *CloudStorageHandler) CreateDirectory(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.CreateDirectoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	dir, err := h.files.CreateDirectory(c.Request.Context(), userUUID, req.ParentDirectoryPath, req.DirectoryName)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, fileItem(dir))
}

// Rename 重命名文件或目录
func (h *CloudStorageHandler) Rename(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.RenameFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	if err := h.files.Rename(c.Request.Context(), userUUID, req.FileUUID, req.NewFileName); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, nil)
}

// Move 移动文件或目录
func (h *CloudStorageHandler) Move(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.MoveFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	if err := h.files.Move(c.Request.Context(), userUUID, req.FileUUIDs, req.TargetDirectoryPath); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, nil)
}

// Delete 删除文件或目录
func (h *CloudStorageHandler) Delete(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.FileUUIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	if err := h.files.Delete(c.Request.Context(), userUUID, req.FileUUIDs); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, nil)
}

// UploadStart 申请上传，返回直传 policy
func (h *CloudStorageHandler) UploadStart(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.UploadStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	res, err := h.files.UploadStart(c.Request.Context(), userUUID, service.UploadStartInput{
		FileName:            req.FileName,
		FileSize:            req.FileSize,
		TargetDirectoryPath: req.TargetDirectoryPath,
		ConvertType:         domain.FileResourceType(req.ConvertType),
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, dto.UploadStartResponse{
		FileUUID:    res.FileUUID,
		OSSFilePath: res.OSSFilePath,
		OSSDomain:   res.OSSDomain,
		AccessKeyID: res.Policy.AccessKeyID,
		Policy:      res.Policy.Policy,
		Signature:   res.Policy.Signature,
		ExpireAt:    res.Policy.Expire.UnixMilli(),
	})
}

// UploadFinish 客户端上传完成后确认
func (h *CloudStorageHandler) UploadFinish(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.FileUUIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	file, err := h.files.UploadFinish(c.Request.Context(), userUUID, req.FileUUID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, fileItem(file))
}

// AddURLFile 添加在线课件，返回新文件
func (h *CloudStorageHandler) AddURLFile(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.AddURLFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	file, err := h.files.AddURLFile(c.Request.Context(), userUUID, req.FileName, req.URL, req.TargetDirectoryPath)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, fileItem(file))
}

// UploadCancel 取消进行中的上传
func (h *CloudStorageHandler) UploadCancel(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.UploadCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	if err := h.files.UploadCancel(c.Request.Context(), userUUID, req.FileUUIDs); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, nil)
}

// ConvertStart 发起转码
func (h *CloudStorageHandler) ConvertStart(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.FileUUIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	res, err := h.files.ConvertStart(c.Request.Context(), userUUID, req.FileUUID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, dto.ConvertStartResponse{
		ResourceType: string(res.ResourceType),
		TaskUUID:     res.TaskUUID,
		TaskToken:    res.TaskToken,
	})
}

// ConvertFinish 查询并落定转码结果，仍在转码时返回可重试错误
func (h *CloudStorageHandler) ConvertFinish(c *gin.Context) {
	userUUID, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.FileUUIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BindError(c, err)
		return
	}
	if err := h.files.ConvertFinish(c.Request.Context(), userUUID, req.FileUUID); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, nil)
}

func fileItem(f *domain.CloudStorageFile) dto.FileItem {
	item := dto.FileItem{
		FileUUID:      f.FileUUID,
		FileName:      f.FileName,
		FileSize:      f.FileSize,
		FileURL:       f.FileURL,
		DirectoryPath: f.DirectoryPath,
		ResourceType:  string(f.ResourceType),
		CreateAt:      f.CreatedAt,
	}
	if payload, err := f.DecodePayload(); err == nil {
		item.ConvertStep = string(payload.ConvertStep)
	}
	return item
}

package dto

import "time"

// ListFilesQuery 目录列表查询参数
type ListFilesQuery struct {
	DirectoryPath string `form:"directoryPath" binding:"required,dirpath"`
	Page          int    `form:"page" binding:"required,min=1"`
	Size          int    `form:"size" binding:"omitempty,min=1,max=50"`
	Order         string `form:"order" binding:"omitempty,oneof=ASC DESC"`
}

// FileItem 文件或目录
type FileItem struct {
	FileUUID      string    `json:"fileUUID"`
	FileName      string    `json:"fileName"`
	FileSize      int64     `json:"fileSize"`
	FileURL       string    `json:"fileURL"`
	DirectoryPath string    `json:"directoryPath"`
	ResourceType  string    `json:"resourceType"`
	ConvertStep   string    `json:"convertStep,omitempty"`
	CreateAt      time.Time `json:"createAt"`
}

// ListFilesResponse 目录列表
type ListFilesResponse struct {
	TotalUsage int64      `json:"totalUsage"`
	Files      []FileItem `json:"files"`
}

// CreateDirectoryRequest 新建目录
type CreateDirectoryRequest struct {
	ParentDirectoryPath string `json:"parentDirectoryPath" binding:"required,dirpath"`
	DirectoryName       string `json:"directoryName" binding:"required,max=128"`
}

// RenameFileRequest 重命名文件或目录
type RenameFileRequest struct {
	FileUUID    string `json:"fileUUID" binding:"required,max=40"`
	NewFileName string `json:"newFileName" binding:"required,max=128"`
}

// MoveFilesRequest 移动到目标目录
type MoveFilesRequest struct {
	FileUUIDs           []string `json:"fileUUIDs" binding:"required,min=1,max=50,dive,required"`
	TargetDirectoryPath string   `json:"targetDirectoryPath" binding:"required,dirpath"`
}

// FileUUIDsRequest 批量操作
type FileUUIDsRequest struct {
	FileUUIDs []string `json:"fileUUIDs" binding:"required,min=1,max=50,dive,required"`
}

// UploadStartRequest 申请上传
type UploadStartRequest struct {
	FileName            string `json:"fileName" binding:"required,max=128"`
	FileSize            int64  `json:"fileSize" binding:"required,gt=0"`
	TargetDirectoryPath string `json:"targetDirectoryPath" binding:"required,dirpath"`
	ConvertType         string `json:"convertType" binding:"omitempty,oneof=WhiteboardProjector"`
}

// UploadStartResponse 客户端直传所需的表单字段
type UploadStartResponse struct {
	FileUUID    string `json:"fileUUID"`
	OSSFilePath string `json:"ossFilePath"`
	OSSDomain   string `json:"ossDomain"`
	AccessKeyID string `json:"accessKeyId"`
	Policy      string `json:"policy"`
	Signature   string `json:"signature"`
	ExpireAt    int64  `json:"expireAt"`
}

// AddURLFileRequest 添加在线课件
type AddURLFileRequest struct {
	FileName            string `json:"fileName" binding:"required,max=128"`
	URL                 string `json:"url" binding:"required,url,max=256"`
	TargetDirectoryPath string `json:"targetDirectoryPath" binding:"required,dirpath"`
}

// FileUUIDRequest 单个文件操作
type FileUUIDRequest struct {
	FileUUID string `json:"fileUUID" binding:"required,max=40"`
}

// UploadCancelRequest fileUUIDs 为空表示取消全部进行中的上传
type UploadCancelRequest struct {
	FileUUIDs []string `json:"fileUUIDs" binding:"omitempty,max=50,dive,required"`
}

// ConvertStartResponse 转码任务
type ConvertStartResponse struct {
	ResourceType string `json:"resourceType"`
	TaskUUID     string `json:"taskUUID"`
	TaskToken    string `json:"taskToken"`
}

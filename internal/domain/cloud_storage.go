package domain

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// CloudStorageFile 云盘中的文件或目录。
// 目录行本身位于 (DirectoryPath, FileName)，代表的文件夹是 DirectoryPath + FileName + "/"。
type CloudStorageFile struct {
	Base
	FileUUID      string           `gorm:"column:file_uuid;type:varchar(40);uniqueIndex;not null"`
	FileName      string           `gorm:"column:file_name;type:varchar(128);not null"`
	FileSize      int64            `gorm:"column:file_size;not null"`
	FileURL       string           `gorm:"column:file_url;type:varchar(256);not null"`
	DirectoryPath string           `gorm:"column:directory_path;type:varchar(300);index;not null"`
	ResourceType  FileResourceType `gorm:"column:resource_type;type:varchar(30);not null"`
	Payload       datatypes.JSON   `gorm:"column:payload"`
}

// IsDirectory 是否为目录
func (f *CloudStorageFile) IsDirectory() bool { return f.ResourceType == ResourceDirectory }

// FullPath 目录行代表的完整路径 (带结尾的 /)，普通文件返回 DirectoryPath + FileName
func (f *CloudStorageFile) FullPath() string {
	if f.IsDirectory() {
		return f.DirectoryPath + f.FileName + "/"
	}
	return f.DirectoryPath + f.FileName
}

// DecodePayload 解析 payload 列
func (f *CloudStorageFile) DecodePayload() (FilePayload, error) {
	var p FilePayload
	if len(f.Payload) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		return p, fmt.Errorf("decode payload of file %s: %w", f.FileUUID, err)
	}
	return p, nil
}

// FilePayload 随资源类型变化的附加信息，转码类文件记录转码任务。
type FilePayload struct {
	Region      Region      `json:"region,omitempty"`
	ConvertStep ConvertStep `json:"convertStep,omitempty"`
	TaskUUID    string      `json:"taskUUID,omitempty"`
	TaskToken   string      `json:"taskToken,omitempty"`
}

// JSON 序列化为 datatypes.JSON 以便写入 payload 列
func (p FilePayload) JSON() datatypes.JSON {
	b, _ := json.Marshal(p) // 纯字符串字段，不会失败
	return datatypes.JSON(b)
}

// CloudStorageUserFile 文件归属关系，存在即代表有权限操作该文件
type CloudStorageUserFile struct {
	Base
	UserUUID string `gorm:"column:user_uuid;type:varchar(40);uniqueIndex:idx_user_file;not null"`
	FileUUID string `gorm:"column:file_uuid;type:varchar(40);uniqueIndex:idx_user_file;index;not null"`
}

// CloudStorageConfig 每个用户的已用空间计数 (字节)
type CloudStorageConfig struct {
	Base
	UserUUID   string `gorm:"column:user_uuid;type:varchar(40);uniqueIndex;not null"`
	TotalUsage int64  `gorm:"column:total_usage;not null"`
}

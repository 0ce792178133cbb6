package external

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/sirupsen/logrus"

	"github.com/netless-io/flat-server-sub001/internal/service"
)

// 单次 DeleteObjects 最多 1000 个 key
const deleteBatchSize = 1000

const policyTTL = 2 * time.Hour

// ossBucket *oss.Bucket 中用到的方法
type ossBucket interface {
	IsObjectExist(objectKey string, options ...oss.Option) (bool, error)
	DeleteObjects(objectKeys []string, options ...oss.Option) (oss.DeleteObjectsResult, error)
}

// OSSOptions 阿里云 OSS 参数
type OSSOptions struct {
	AccessKeyID     string
	AccessKeySecret string
	Endpoint        string
	Bucket          string
	Region          string
	// Domain 为空时使用 bucket 的默认外网域名
	Domain string
}

// OSSStore 基于阿里云 OSS 的对象存储
type OSSStore struct {
	bucket    ossBucket
	accessKey string
	secret    []byte
	bucketNm  string
	domain    string
	now       func() time.Time
}

// NewOSSStore 连接 OSS bucket
func NewOSSStore(opts OSSOptions) (*OSSStore, error) {
	if opts.AccessKeyID == "" || opts.AccessKeySecret == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("oss: access key, secret and bucket are required")
	}
	client, err := oss.New(opts.Endpoint, opts.AccessKeyID, opts.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss: create client: %w", err)
	}
	bucket, err := client.Bucket(opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("oss: open bucket %s: %w", opts.Bucket, err)
	}
	domain := strings.TrimSuffix(opts.Domain, "/")
	if domain == "" {
		domain = fmt.Sprintf("https://%s.oss-%s.aliyuncs.com", opts.Bucket, opts.Region)
	}
	return newOSSStore(bucket, opts.AccessKeyID, opts.AccessKeySecret, opts.Bucket, domain), nil
}

func newOSSStore(bucket ossBucket, accessKey, secret, bucketName, domain string) *OSSStore {
	return &OSSStore{
		bucket:    bucket,
		accessKey: accessKey,
		secret:    []byte(secret),
		bucketNm:  bucketName,
		domain:    domain,
		now:       time.Now,
	}
}

// Domain 文件访问域名
func (s *OSSStore) Domain() string {
	return s.domain
}

// Exists 对象是否存在
func (s *OSSStore) Exists(ctx context.Context, path string) (bool, error) {
	ok, err := s.bucket.IsObjectExist(strings.TrimPrefix(path, "/"), oss.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("oss: head %s: %w", path, err)
	}
	return ok, nil
}

// Remove 批量删除对象，不存在的对象不算错误
func (s *OSSStore) Remove(ctx context.Context, paths []string) error {
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		if k := strings.TrimPrefix(p, "/"); k != "" {
			keys = append(keys, k)
		}
	}
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		if _, err := s.bucket.DeleteObjects(keys[start:end], oss.DeleteObjectsQuiet(true), oss.WithContext(ctx)); err != nil {
			return fmt.Errorf("oss: delete %d objects: %w", end-start, err)
		}
	}
	logrus.WithField("count", len(keys)).Debug("OSS objects removed")
	return nil
}

// PolicyTemplate 生成表单直传 policy，限定 key、大小和下载文件名
func (s *OSSStore) PolicyTemplate(fileName, path string, size int64) (service.UploadPolicy, error) {
	expire := s.now().Add(policyTTL).UTC()
	encoded := url.PathEscape(fileName)
	policy := map[string]interface{}{
		"expiration": expire.Format("2006-01-02T15:04:05.000Z"),
		"conditions": []interface{}{
			map[string]string{"bucket": s.bucketNm},
			[]interface{}{"content-length-range", size, size},
			[]interface{}{"eq", "$key", strings.TrimPrefix(path, "/")},
			[]interface{}{"eq", "$Content-Disposition",
				fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, encoded, encoded)},
		},
	}
	raw, err := json.Marshal(policy)
	if err != nil {
		return service.UploadPolicy{}, fmt.Errorf("oss: marshal policy: %w", err)
	}
	b64 := base64.StdEncoding.EncodeToString(raw)
	mac := hmac.New(sha1.New, s.secret)
	mac.Write([]byte(b64))

	return service.UploadPolicy{
		AccessKeyID: s.accessKey,
		Policy:      b64,
		Signature:   base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		Expire:      expire,
	}, nil
}

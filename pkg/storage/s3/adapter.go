package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"imagevault/pkg/core"
	"imagevault/pkg/storage"
	"imagevault/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Adapter 实现了 storage.Store 接口 (对象存储变体)
// Phase 2 的“换后端不换接口”就落在这里：调用方拿到的还是同一个 Store
type Adapter struct {
	client *s3.Client
	bucket string
	depth  int
	width  int
	ext    string
}

var _ storage.Store = (*Adapter)(nil)

// Config 用于初始化 Adapter
type Config struct {
	Endpoint        string // MinIO 的 localhost:9000 之类，留空走 AWS 默认
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string

	// Key 布局参数，语义和磁盘后端完全一致
	ShardDepth int
	ShardWidth int
	DefaultExt string
}

// NewAdapter 初始化 S3 客户端 (适配 AWS SDK v2 最新规范)
func NewAdapter(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	if cfg.ShardDepth < 0 {
		return nil, fmt.Errorf("s3: shard depth must be >= 0, got %d", cfg.ShardDepth)
	}
	if cfg.ShardDepth > 0 && cfg.ShardWidth <= 0 {
		return nil, fmt.Errorf("s3: shard width must be > 0 when depth is %d, got %d", cfg.ShardDepth, cfg.ShardWidth)
	}
	if cfg.ShardDepth*cfg.ShardWidth >= 64 {
		return nil, fmt.Errorf("s3: shard depth*width (%d) exceeds digest length", cfg.ShardDepth*cfg.ShardWidth)
	}

	ext := cfg.DefaultExt
	if ext == "" {
		ext = ".jpg"
	}

	// 1. 加载基础配置 (仅包含 Region 和 Credentials)
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	// 2. 创建 S3 客户端时，注入特定于 S3 的配置
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		// 【关键】MinIO 必须强制使用 Path Style
		// 即: http://host:9000/bucket/key
		o.UsePathStyle = true
	})

	// 3. 自动创建 Bucket (本地 MinIO 开发用，生产环境建议手动管理)
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &cfg.Bucket})
	if err != nil {
		_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &cfg.Bucket})
		if err != nil {
			fmt.Printf("Warning: failed to ensure bucket exists: %v\n", err)
		}
	}

	return &Adapter{
		client: client,
		bucket: cfg.Bucket,
		depth:  cfg.ShardDepth,
		width:  cfg.ShardWidth,
		ext:    ext,
	}, nil
}

func (s *Adapter) extOrDefault(ext string) string {
	if ext == "" {
		return s.ext
	}
	return ext
}

// objectKey 把 Digest 转换为 S3 Key，布局和磁盘后端对齐
// Example (depth=2, width=2): "abcd1234..." -> "ab/cd/abcd1234....jpg"
func (s *Adapter) objectKey(digest types.Digest, ext string) string {
	d := digest.String()
	parts := make([]string, 0, s.depth+1)
	for i := 0; i < s.depth; i++ {
		start := i * s.width
		// 残缺 Digest 不允许把 slice 撑爆：字符不够就截断分片
		if start >= len(d) {
			break
		}
		parts = append(parts, d[start:min(start+s.width, len(d))])
	}
	parts = append(parts, d+s.extOrDefault(ext))
	return strings.Join(parts, "/")
}

// contentType 根据扩展名标记 Content-Type，方便在控制台里直接预览
func contentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// Put 上传对象
func (s *Adapter) Put(ctx context.Context, data []byte, ext string, meta map[string]string) (*storage.Result, error) {
	_ = meta // 预留，见 storage.Store

	digest := core.DigestOf(data)
	key := s.objectKey(digest, ext)

	result := &storage.Result{
		Digest:   digest,
		Location: s.locationOf(key),
		Size:     int64(len(data)),
		StoredAt: time.Now().UTC(),
	}

	// 1. 幂等性检查 (去重)
	// 对于 S3，Head 请求比 Put 便宜且快。已存在就直接跳过上传。
	exists, err := s.Has(ctx, digest, ext)
	if err != nil {
		return nil, fmt.Errorf("s3 put existence check failed: %w", err)
	}
	if exists {
		result.IsDuplicate = true
		return result, nil
	}

	// 2. 执行上传
	// S3 的 PutObject 本身就是原子的：对象要么完整可见，要么不可见，
	// 不需要磁盘后端那套 temp+rename。
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType(s.extOrDefault(ext))),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put failed: %w", err)
	}

	return result, nil
}

// Get 下载对象
// 非法 Digest 等价于“从未存过”，在发请求之前就拦下
func (s *Adapter) Get(ctx context.Context, digest types.Digest, ext string) ([]byte, error) {
	if !digest.IsValid() {
		return nil, storage.ErrNotFound
	}
	key := s.objectKey(digest, ext)

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// 将 AWS 的 NoSuchKey 错误映射为我们自己的 ErrNotFound
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 get read failed: %w", err)
	}
	return data, nil
}

// Has 检查对象是否存在
func (s *Adapter) Has(ctx context.Context, digest types.Digest, ext string) (bool, error) {
	if !digest.IsValid() {
		return false, nil
	}
	key := s.objectKey(digest, ext)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var notFound *s3types.NotFound
	var noKey *s3types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noKey) {
		return false, nil
	}
	// 兼容性：某些 S3 实现可能返回 generic 404 error string
	if strings.Contains(err.Error(), "404") {
		return false, nil
	}

	return false, err
}

// Locate 返回 s3://bucket/key 形式的落点，纯推导
func (s *Adapter) Locate(digest types.Digest, ext string) string {
	return s.locationOf(s.objectKey(digest, ext))
}

func (s *Adapter) locationOf(key string) string {
	return "s3://" + s.bucket + "/" + key
}

// Delete 删除对象
// S3 的 DeleteObject 对不存在的 Key 也返回成功，所以先 Head 一次
// 来区分 “删掉了” 和 “本来就没有”。Head 和 Delete 之间的竞态是良性的。
func (s *Adapter) Delete(ctx context.Context, digest types.Digest, ext string) (bool, error) {
	exists, err := s.Has(ctx, digest, ext)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	key := s.objectKey(digest, ext)
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, fmt.Errorf("s3 delete failed: %w", err)
	}
	return true, nil
}

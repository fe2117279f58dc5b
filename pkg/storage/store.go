package storage

import (
	"context"
	"errors"
	"time"

	"imagevault/pkg/types"
)

var (
	ErrNotFound = errors.New("object not found")
)

// Result 是一次 Put 的同步回执，不做持久化
type Result struct {
	// Digest 是内容的 SHA256 Hex，唯一身份
	Digest types.Digest

	// Location 是对象的落点 (磁盘路径 或 s3://bucket/key)
	// 【约定】对调用方是不透明字符串，只能原样保存/展示，不要解析
	Location string

	// Size 为调用方提交的字节数 (去重命中时不会重新读盘)
	Size int64

	// IsDuplicate 表示本次调用之前对象就已存在 (去重命中)
	IsDuplicate bool

	// StoredAt 为本次调用的时间戳
	StoredAt time.Time
}

// Store defines the interface for a storage backend.
// Implementations can be local disk, S3/MinIO, or a future distributed CAS.
// 调用方只依赖这个接口，换后端不改调用代码 (Phase 2 目标)。
type Store interface {
	// Put 按内容寻址存储一份图像字节
	// ext 为空时使用后端的默认扩展名 (一般是 .jpg)
	// meta 目前不使用，仅为未来的 manifest 预留，后端必须接受并忽略
	Put(ctx context.Context, data []byte, ext string, meta map[string]string) (*Result, error)

	// Get 根据 Digest 读取完整的原始字节
	// 对象不存在时返回 ErrNotFound —— 这是预期结果，不是故障
	Get(ctx context.Context, digest types.Digest, ext string) ([]byte, error)

	// Has 检查对象是否存在 (纯探测，不读内容)
	Has(ctx context.Context, digest types.Digest, ext string) (bool, error)

	// Locate 返回对象“会在/就在”哪里，纯推导，无 I/O，不保证存在
	// 供外部索引在写入完成前就拿到稳定引用
	Locate(digest types.Digest, ext string) string

	// Delete 删除对象。返回 true 表示确实删掉了，false 表示本来就不存在
	Delete(ctx context.Context, digest types.Digest, ext string) (bool, error)
}

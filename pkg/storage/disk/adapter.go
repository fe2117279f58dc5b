package disk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"imagevault/pkg/core"
	"imagevault/pkg/storage"
	"imagevault/pkg/types"
)

// 默认布局：ab/cd/abcd....jpg
const (
	DefaultShardDepth = 2
	DefaultShardWidth = 2
	DefaultExt        = ".jpg"
)

// Config 磁盘后端的构造参数，实例生命周期内不可变
type Config struct {
	Root       string // 比如: /mnt/raid1/sai-images
	ShardDepth int    // 目录层级数
	ShardWidth int    // 每层消耗的 Digest 字符数
	DefaultExt string // ext 为空时的回退扩展名
}

// DefaultConfig 返回 Phase 1 的标准布局配置
func DefaultConfig(root string) Config {
	return Config{
		Root:       root,
		ShardDepth: DefaultShardDepth,
		ShardWidth: DefaultShardWidth,
		DefaultExt: DefaultExt,
	}
}

// Adapter 实现了 storage.Store 接口 (文件系统变体)
type Adapter struct {
	root  string
	depth int
	width int
	ext   string
}

// 编译期断言：Adapter 必须满足接口
var _ storage.Store = (*Adapter)(nil)

// NewAdapter 创建一个新的磁盘存储适配器
// 非法配置在这里就报错 (fail fast)，而不是等到第一次 Put
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("disk: root path is required")
	}
	if cfg.ShardDepth < 0 {
		return nil, fmt.Errorf("disk: shard depth must be >= 0, got %d", cfg.ShardDepth)
	}
	if cfg.ShardDepth > 0 && cfg.ShardWidth <= 0 {
		return nil, fmt.Errorf("disk: shard width must be > 0 when depth is %d, got %d", cfg.ShardDepth, cfg.ShardWidth)
	}
	// SHA256 Hex 只有 64 个字符，分片不能把文件名吃光
	if cfg.ShardDepth*cfg.ShardWidth >= 64 {
		return nil, fmt.Errorf("disk: shard depth*width (%d) exceeds digest length", cfg.ShardDepth*cfg.ShardWidth)
	}

	ext := cfg.DefaultExt
	if ext == "" {
		ext = DefaultExt
	}

	// 确保根目录存在
	if err := os.MkdirAll(cfg.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}

	return &Adapter{
		root:  cfg.Root,
		depth: cfg.ShardDepth,
		width: cfg.ShardWidth,
		ext:   ext,
	}, nil
}

func (s *Adapter) extOrDefault(ext string) string {
	if ext == "" {
		return s.ext
	}
	return ext
}

// shardDir 返回 Digest 对应的分片目录
// Example (depth=2, width=2): "abcd1234..." -> root/ab/cd
func (s *Adapter) shardDir(digest types.Digest) string {
	parts := make([]string, 0, s.depth+1)
	parts = append(parts, s.root)
	d := digest.String()
	for i := 0; i < s.depth; i++ {
		start := i * s.width
		// 残缺 Digest 不允许把 slice 撑爆：字符不够就截断分片
		if start >= len(d) {
			break
		}
		parts = append(parts, d[start:min(start+s.width, len(d))])
	}
	return filepath.Join(parts...)
}

// layout 返回对象的最终物理路径：分片目录 + 完整 Digest + 扩展名
// 纯推导，无任何 I/O —— 外部索引可以在写入前预测落点
func (s *Adapter) layout(digest types.Digest, ext string) string {
	return filepath.Join(s.shardDir(digest), digest.String()+s.extOrDefault(ext))
}

// Put 按内容寻址写入一份图像
// 协议：Digest -> 落点 -> 去重检查 -> mkdir -> 临时文件 -> 原子 Rename
func (s *Adapter) Put(ctx context.Context, data []byte, ext string, meta map[string]string) (*storage.Result, error) {
	// meta 仅为未来的 manifest 预留，这里接受并忽略
	_ = meta

	digest := core.DigestOf(data)
	targetPath := s.layout(digest, ext)

	result := &storage.Result{
		Digest:   digest,
		Location: targetPath,
		Size:     int64(len(data)),
		StoredAt: time.Now().UTC(),
	}

	// 1. 去重检查 (幂等性)
	// 命中时跳过所有写 I/O。Size 用调用方给的长度，不重新读盘。
	if _, err := os.Stat(targetPath); err == nil {
		result.IsDuplicate = true
		return result, nil
	}

	// 2. 准备分片目录 (create-if-absent，可重复调用)
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create shard dir %s: %w", dir, err)
	}

	// 3. 原子写入 (Atomic Write)
	// 先写临时文件再 Rename：最终路径要么不存在，要么是完整文件。
	// 临时名前缀 "tmp-" 不可能和 64 位 Hex 文件名冲突，读者永远不会打开它。
	tempFile, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	// 失败路径上的兜底清理（Rename 成功后这个删除会落空，无害）
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	// 4. Rename 是对象“可见”的唯一时刻
	// 并发写同一个 Digest 时内容完全相同，谁赢都等价
	if err := os.Rename(tempFile.Name(), targetPath); err != nil {
		return nil, fmt.Errorf("failed to rename into place: %w", err)
	}

	return result, nil
}

// Get 读取完整的原始字节
// 非法 Digest 等价于“从未存过”—— 返回 ErrNotFound，绝不 panic
func (s *Adapter) Get(ctx context.Context, digest types.Digest, ext string) ([]byte, error) {
	if !digest.IsValid() {
		return nil, storage.ErrNotFound
	}
	targetPath := s.layout(digest, ext)

	data, err := os.ReadFile(targetPath)
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", targetPath, err)
	}
	return data, nil
}

// Has 存在性探测，不读内容
func (s *Adapter) Has(ctx context.Context, digest types.Digest, ext string) (bool, error) {
	if !digest.IsValid() {
		return false, nil
	}
	_, err := os.Stat(s.layout(digest, ext))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Locate 返回对象的落点，不保证存在
func (s *Adapter) Locate(digest types.Digest, ext string) string {
	return s.layout(digest, ext)
}

// Delete 删除对象
// 返回 true = 删掉了，false = 本来就不存在 (不算错误)
// 注意：故意不清理变空的分片目录 —— 删目录会和并发写入者产生竞态，
// 留几个空目录是可接受的代价。
func (s *Adapter) Delete(ctx context.Context, digest types.Digest, ext string) (bool, error) {
	if !digest.IsValid() {
		return false, nil
	}
	err := os.Remove(s.layout(digest, ext))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

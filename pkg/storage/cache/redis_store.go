package cache

import (
	"context"
	"fmt"
	"time"

	"imagevault/pkg/core"
	"imagevault/pkg/storage"
	"imagevault/pkg/types"

	"github.com/redis/go-redis/v9"
)

// CachedStore 是一个装饰器，它为底层的 storage.Store 添加 Redis 存在性缓存
// 只缓存 “这个 Digest 存不存在”，不缓存图像字节 —— 图像可能很大，
// Redis 内存极其宝贵，只存元数据(Existence)性价比最高。
type CachedStore struct {
	backend storage.Store // 被装饰的底层存储 (如 S3)
	client  *redis.Client
	ttl     time.Duration
}

var _ storage.Store = (*CachedStore)(nil)

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 缓存过期时间 (例如 24h)
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
	}, nil
}

// cacheKey 生成 Redis Key，加前缀防冲突
// 注意 ext 参与 Key：同一个 Digest 在不同扩展名下是不同对象。
// 空 ext 和显式默认 ext 会各占一个 Key，最坏情况多打一次后端探测，无害。
func (s *CachedStore) cacheKey(digest types.Digest, ext string) string {
	return "iv:img:" + string(digest) + ext
}

// Has 优先查 Redis，实现毫秒级去重
func (s *CachedStore) Has(ctx context.Context, digest types.Digest, ext string) (bool, error) {
	key := s.cacheKey(digest, ext)

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		// 缓存故障降级 (Cache Failure Fallback)
		// Redis 挂了就退化为无缓存模式，直接打后端，不让整个流程崩掉
		fmt.Printf("WARN: Redis error: %v\n", err)
	} else if val > 0 {
		// Cache Hit! 省掉一次后端网络请求
		return true, nil
	}

	// 缓存未命中 (Cache Miss)，查底层存储
	found, err := s.backend.Has(ctx, digest, ext)
	if err != nil {
		return false, err
	}

	// 缓存回填 (Cache Fill)，异步执行不阻塞主流程
	// 用 context.Background() 保证上层 ctx 取消时回填仍能完成
	if found {
		go func() {
			fillCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			s.client.Set(fillCtx, key, "1", s.ttl)
		}()
	}

	return found, nil
}

// Put 存储对象。利用 Has 的缓存能力做预检。
func (s *CachedStore) Put(ctx context.Context, data []byte, ext string, meta map[string]string) (*storage.Result, error) {
	digest := core.DigestOf(data)

	// 1. 预检：Redis 里有的话这一步耗时 < 1ms，直接跳过上传
	exists, err := s.Has(ctx, digest, ext)
	if err != nil {
		return nil, err
	}
	if exists {
		return &storage.Result{
			Digest:      digest,
			Location:    s.backend.Locate(digest, ext),
			Size:        int64(len(data)),
			IsDuplicate: true,
			StoredAt:    time.Now().UTC(),
		}, nil
	}

	// 2. 穿透到底层存储
	result, err := s.backend.Put(ctx, data, ext, meta)
	if err != nil {
		return nil, err
	}

	// 3. 只有后端写成功了才写缓存。Set 失败可以忽略，不影响主流程。
	s.client.Set(ctx, s.cacheKey(digest, ext), "1", s.ttl)

	return result, nil
}

// Get 透传 —— 不缓存 Blob 数据
func (s *CachedStore) Get(ctx context.Context, digest types.Digest, ext string) ([]byte, error) {
	return s.backend.Get(ctx, digest, ext)
}

// Locate 透传，纯推导不走缓存
func (s *CachedStore) Locate(digest types.Digest, ext string) string {
	return s.backend.Locate(digest, ext)
}

// Delete 先失效缓存再删后端
// 顺序很重要：反过来会出现 “后端删了、缓存还说存在” 的脏窗口
func (s *CachedStore) Delete(ctx context.Context, digest types.Digest, ext string) (bool, error) {
	if err := s.client.Del(ctx, s.cacheKey(digest, ext)).Err(); err != nil {
		fmt.Printf("WARN: Redis invalidate error: %v\n", err)
	}
	return s.backend.Delete(ctx, digest, ext)
}

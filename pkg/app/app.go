// pkg/app/app.go
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"imagevault/pkg/storage"
	"imagevault/pkg/storage/cache"
	"imagevault/pkg/storage/disk"
	"imagevault/pkg/storage/s3"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务。存储实例在这里组装后显式注入到各个调用方，
// 不做进程级全局变量 —— 多实例测试、换后端都靠这层。
type App struct {
	Store    storage.Store
	RepoPath string
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	store, err := initStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	// storePath: .../.iv/images -> repoPath: .../.iv
	repoPath := filepath.Dir(viper.GetString("storage.path"))

	return &App{
		Store:    store,
		RepoPath: repoPath,
	}, nil
}

// initStore 根据配置选择后端 (disk | s3)，并按需叠加 Redis 缓存层
// 这就是 Phase 2 的切换点：调用方永远只见 storage.Store
func initStore(ctx context.Context) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)

	switch viper.GetString("storage.type") {
	case "disk":
		store, err = disk.NewAdapter(disk.Config{
			Root:       viper.GetString("storage.path"),
			ShardDepth: viper.GetInt("storage.shard_depth"),
			ShardWidth: viper.GetInt("storage.shard_width"),
			DefaultExt: viper.GetString("storage.extension"),
		})
	case "s3":
		if viper.GetString("s3.bucket") == "" {
			return nil, fmt.Errorf("s3 bucket is required (set s3.bucket)")
		}
		store, err = s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("s3.endpoint"),
			Region:          viper.GetString("s3.region"),
			Bucket:          viper.GetString("s3.bucket"),
			AccessKeyID:     viper.GetString("s3.access_key"),
			SecretAccessKey: viper.GetString("s3.secret_key"),
			ShardDepth:      viper.GetInt("storage.shard_depth"),
			ShardWidth:      viper.GetInt("storage.shard_width"),
			DefaultExt:      viper.GetString("storage.extension"),
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %q", viper.GetString("storage.type"))
	}
	if err != nil {
		return nil, err
	}

	// 缓存层是装饰器，对后端类型无感
	if viper.GetBool("cache.enabled") {
		store, err = cache.NewCachedStore(store, cache.Config{
			RedisURL: viper.GetString("cache.redis_url"),
			TTL:      viper.GetDuration("cache.ttl"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init cache layer: %w", err)
		}
	}

	return store, nil
}

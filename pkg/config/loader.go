package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 用户显式指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .iv
		viper.AddConfigPath(".iv")
		// 3. 用户主目录下的 .iv
		viper.AddConfigPath(filepath.Join(home, ".iv"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (IV_DATABASE_HOST 等)
	viper.SetEnvPrefix("IV")
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错（可能全靠环境变量），格式错才是错
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("⚠️  No config file found, using defaults/env vars")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	} else {
		fmt.Println("🔧 Using config file:", viper.ConfigFileUsed())
	}

	return nil
}

func setDefaults() {
	// 存储默认值
	wd, _ := os.Getwd()
	defaultStorePath := filepath.Join(wd, ".iv", "images")
	viper.SetDefault("storage.type", "disk")
	viper.SetDefault("storage.path", defaultStorePath)
	viper.SetDefault("storage.shard_depth", 2)
	viper.SetDefault("storage.shard_width", 2)
	viper.SetDefault("storage.extension", ".jpg")

	// S3 默认值 (仅 storage.type=s3 时生效)
	viper.SetDefault("s3.region", "us-east-1")

	// 缓存默认值
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	viper.SetDefault("cache.ttl", "24h")

	// 数据库默认值 (reprocess 命令用)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "sai_dashboard")
	viper.SetDefault("database.sslmode", "disable")

	// 推理服务默认值
	viper.SetDefault("inference.url", "http://localhost:8888/api/v1/infer")
	viper.SetDefault("inference.confidence_threshold", 0.25)
	viper.SetDefault("inference.iou_threshold", 0.1)
	viper.SetDefault("inference.timeout", "30s")
}

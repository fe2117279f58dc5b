package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_Defaults(t *testing.T) {
	// 1. 空的临时目录 (模拟没有 .ivignore 的情况)
	tmpDir := t.TempDir()

	matcher, err := NewMatcher(tmpDir)
	require.NoError(t, err)

	// 2. 验证默认规则
	tests := []struct {
		path     string
		shouldIg bool
	}{
		{".iv", true},
		{".iv/images/ab", true}, // 子路径也应该被忽略
		{".git", true},
		{"config.yaml", true},
		{".DS_Store", true},
		{"cam01/frame_0042.jpg.partial", true}, // 同步了一半的帧
		{"thumbnails/frame_0001.jpg", true},    // 缩略图不是原始帧
		{"frame_0001.jpg", false},              // 普通图像不应忽略
		{"cam01/frame_0002.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "Path: %s", tt.path)
		})
	}
}

func TestMatcher_WithUserFile(t *testing.T) {
	tmpDir := t.TempDir()

	// 创建 .ivignore 文件，写入自定义规则
	ignoreContent := `
# 这是注释
*.tmp
calibration
!keep.tmp
`
	err := os.WriteFile(filepath.Join(tmpDir, ".ivignore"), []byte(ignoreContent), 0644)
	require.NoError(t, err)

	matcher, err := NewMatcher(tmpDir)
	require.NoError(t, err)

	// 验证混合规则 (默认 + 用户)
	tests := []struct {
		path     string
		shouldIg bool
	}{
		// --- 默认规则依然要生效 ---
		{".iv", true},
		{"config.yaml", true},

		// --- 用户规则生效 ---
		{"scratch.tmp", true},
		{"cam01/scratch.tmp", true}, // *.tmp 递归
		{"calibration", true},
		{"calibration/chart.jpg", true},

		// --- 正常文件 ---
		{"frame_0001.jpg", false},

		// --- 负向规则 (Whitelisting) ---
		{"keep.tmp", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.shouldIg, matcher.Matches(tt.path), "Path: %s", tt.path)
		})
	}
}

package ignore

import (
	"fmt"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// 批量导入相机目录时的跳过规则。语法与 gitignore 一致，
// 所以相机侧已有的 .gitignore 改名成 .ivignore 就能直接用。

// defaultRules 无条件生效，排在用户规则之后编译，.ivignore 覆盖不了它们
var defaultRules = []string{
	// 存储树自身。把 .iv 导进 .iv 会无限递归，这条是硬保险
	".iv",
	".git",

	// 配置和环境文件可能带 S3 凭证，绝不入库
	"config.yaml",
	".env",

	// 图像管线的半成品和衍生物，不是原始帧
	"*.partial",  // 相机同步断点续传留下的半截文件
	"thumbnails", // 查看器生成的缩略图目录

	// 操作系统垃圾
	".DS_Store",
	"Thumbs.db",
}

// Matcher 判断一个相对路径是否应该被导入流程跳过
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 编译 rootPath 下的 .ivignore (如果有) 和默认规则
func NewMatcher(rootPath string) (*Matcher, error) {
	path := filepath.Join(rootPath, ".ivignore")
	if _, err := os.Stat(path); err == nil {
		ignorer, err := gitignore.CompileIgnoreFileAndLines(path, defaultRules...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return &Matcher{ignorer: ignorer}, nil
	}
	return &Matcher{ignorer: gitignore.CompileIgnoreLines(defaultRules...)}, nil
}

// Matches 返回 true 表示跳过
// path 必须是相对于导入根目录的相对路径 (例如 "cam01/frame_0042.jpg")
func (m *Matcher) Matches(path string) bool {
	if m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(path)
}

package importer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"imagevault/pkg/ignore"
	"imagevault/pkg/storage"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers 并发导入的默认并行度
// 磁盘后端主要瓶颈是 fsync/rename，4 路已经接近打满一块盘
const DefaultWorkers = 4

// 只认这些图像扩展名，其它文件一律跳过
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Summary 一次批量导入的汇总
type Summary struct {
	Files      int   // 成功入库的文件数 (含去重命中)
	Bytes      int64 // 成功入库的总字节数
	Duplicates int   // 其中去重命中的数量
	Skipped    int   // 被忽略规则或扩展名过滤掉的数量
}

// Importer 把文件/目录里的图像批量灌进内容寻址存储
type Importer struct {
	store   storage.Store
	workers int

	// Progress 每成功入库一个文件就回调一次 (可选，CLI 用来打进度)
	// 会被多个 goroutine 并发调用，回调方不要做重活
	Progress func(path string, res *storage.Result)
}

func NewImporter(store storage.Store) *Importer {
	return &Importer{
		store:   store,
		workers: DefaultWorkers,
	}
}

// SetWorkers 覆盖并行度 (n <= 0 时退回默认值)
func (imp *Importer) SetWorkers(n int) {
	if n <= 0 {
		n = DefaultWorkers
	}
	imp.workers = n
}

// ImportFile 导入单个文件
// extOverride 非空时覆盖文件自己的扩展名 (比如统一存成 .jpg)
func (imp *Importer) ImportFile(ctx context.Context, path string, extOverride string) (*storage.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	ext := extOverride
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(path))
	}

	res, err := imp.store.Put(ctx, data, ext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", path, err)
	}
	return res, nil
}

// ImportDir 遍历一个目录，应用 .ivignore 规则，并发导入所有图像文件
// 先收集再并发：遍历阶段很便宜，I/O 才是大头
func (imp *Importer) ImportDir(ctx context.Context, root string, extOverride string) (*Summary, error) {
	matcher, err := ignore.NewMatcher(root)
	if err != nil {
		return nil, fmt.Errorf("failed to compile ignore rules: %w", err)
	}

	summary := &Summary{}
	var candidates []string

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err // 权限错误等
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		if matcher.Matches(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			summary.Skipped++
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !imageExts[strings.ToLower(filepath.Ext(path))] {
			summary.Skipped++
			return nil
		}

		candidates = append(candidates, path)
		return nil
	}

	if err := filepath.WalkDir(root, walkFn); err != nil {
		return nil, fmt.Errorf("walk failed: %w", err)
	}

	// 并发入库，errgroup 限制并行度；任何一个失败就整体失败
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imp.workers)

	var mu sync.Mutex
	for _, path := range candidates {
		g.Go(func() error {
			res, err := imp.ImportFile(gctx, path, extOverride)
			if err != nil {
				return err
			}

			mu.Lock()
			summary.Files++
			summary.Bytes += res.Size
			if res.IsDuplicate {
				summary.Duplicates++
			}
			mu.Unlock()

			if imp.Progress != nil {
				imp.Progress(path, res)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

package reprocess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"imagevault/pkg/inference"
	"imagevault/pkg/meta"
	"imagevault/pkg/storage"

	"golang.org/x/sync/errgroup"
)

// Options 一次批量重处理的参数
type Options struct {
	DryRun  bool          // 查询和推理照常，但不写数据库
	Limit   int           // 最多处理多少条 (<=0 不限)
	Delay   time.Duration // 串行模式下两次请求之间的间隔，保护推理服务
	Workers int           // 并行度，<=1 为串行
}

// Stats 汇总计数
type Stats struct {
	Total   int
	OK      int64
	Skipped int64
	Failed  int64
}

// Runner 批量重跑 YOLO 推理，修复零宽 bbox 的历史坏数据
// 只更新 execution_analysis，executions 表一个字节都不碰
type Runner struct {
	repo   *meta.Repository
	store  storage.Store
	client *inference.Client
	opts   Options

	// Logf 进度输出回调，默认打到 stdout
	Logf func(format string, args ...any)
}

func NewRunner(repo *meta.Repository, store storage.Store, client *inference.Client, opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Runner{
		repo:   repo,
		store:  store,
		client: client,
		opts:   opts,
		Logf: func(format string, args ...any) {
			fmt.Printf(format, args...)
		},
	}
}

// Run 执行整个批次
// 单条失败不中断批次（和人工跑脚本的预期一致），只计入 Failed
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	targets, err := r.repo.ReprocessTargets(ctx, r.opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch targets: %w", err)
	}

	stats := &Stats{Total: len(targets)}
	suffix := ""
	if r.opts.DryRun {
		suffix = " (dry-run)"
	}
	r.Logf("Found %d executions to reprocess%s.\n", stats.Total, suffix)
	if stats.Total == 0 {
		r.Logf("Nothing to do.\n")
		return stats, nil
	}

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for i, target := range targets {
		g.Go(func() error {
			r.processOne(gctx, i+1, stats, target)

			// 串行模式下按原脚本的习惯歇一下，别把推理服务打满
			if r.opts.Workers == 1 && r.opts.Delay > 0 && i+1 < stats.Total {
				select {
				case <-time.After(r.opts.Delay):
				case <-gctx.Done():
				}
			}
			return nil
		})
	}

	// processOne 从不返回错误，这里的 Wait 只是等所有 worker 收工
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	r.Logf("\nDone in %.1fs — ok=%d  skip=%d  fail=%d\n",
		time.Since(start).Seconds(), stats.OK, stats.Skipped, stats.Failed)
	return stats, nil
}

// processOne 处理一条 execution，所有失败都折算进计数器
func (r *Runner) processOne(ctx context.Context, seq int, stats *Stats, target meta.Target) {
	prefix := fmt.Sprintf("[%3d/%d] exec %d", seq, stats.Total, target.ExecutionID)

	image, src, err := r.loadImage(ctx, target)
	if errors.Is(err, storage.ErrNotFound) {
		r.Logf("%s  SKIP  image not found (digest=%s path=%s)\n", prefix, target.ImageDigest, target.OriginalPath)
		atomic.AddInt64(&stats.Skipped, 1)
		return
	}
	if err != nil {
		r.Logf("%s  FAIL  loading image: %v\n", prefix, err)
		atomic.AddInt64(&stats.Failed, 1)
		return
	}

	t0 := time.Now()
	resp, err := r.client.Infer(ctx, filepath.Base(src), image)
	elapsed := time.Since(t0)
	if err != nil {
		r.Logf("%s  FAIL  inference (%.1fs): %v\n", prefix, elapsed.Seconds(), err)
		atomic.AddInt64(&stats.Failed, 1)
		return
	}

	upd, err := buildUpdate(resp)
	if err != nil {
		r.Logf("%s  FAIL  building update: %v\n", prefix, err)
		atomic.AddInt64(&stats.Failed, 1)
		return
	}

	if r.opts.DryRun {
		r.Logf("%s  [DRY RUN] would update: %d detections, has_fire=%v, has_smoke=%v (%.1fs)\n",
			prefix, upd.DetectionCount, upd.HasFire, upd.HasSmoke, elapsed.Seconds())
		atomic.AddInt64(&stats.OK, 1)
		return
	}

	if err := r.repo.UpdateAnalysis(ctx, target.ExecutionID, upd); err != nil {
		r.Logf("%s  FAIL  db update: %v\n", prefix, err)
		atomic.AddInt64(&stats.Failed, 1)
		return
	}

	r.Logf("%s  %d detections  (%.1fs)  ✓\n", prefix, upd.DetectionCount, elapsed.Seconds())
	atomic.AddInt64(&stats.OK, 1)
}

// loadImage 取回一条 execution 的原始图像
// 优先走 CAS (内容寻址，后端无关)；老记录没有 digest 时兜底读 original_path
// 返回的 src 只用于日志/文件名提示
func (r *Runner) loadImage(ctx context.Context, target meta.Target) (data []byte, src string, err error) {
	if target.ImageDigest.IsValid() {
		data, err = r.store.Get(ctx, target.ImageDigest, "")
		if err == nil {
			return data, target.ImageDigest.String() + ".jpg", nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, "", err
		}
		// CAS 没有 -> 继续尝试旧路径
	}

	if target.OriginalPath == "" {
		return nil, "", storage.ErrNotFound
	}
	data, err = os.ReadFile(target.OriginalPath)
	if os.IsNotExist(err) {
		return nil, "", storage.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return data, target.OriginalPath, nil
}

// buildUpdate 把推理应答折算成 execution_analysis 的字段集
// 约定：置信度 <= 0 存 NULL 而不是 0，总分取火/烟里大的那个
func buildUpdate(resp *inference.Response) (meta.AnalysisUpdate, error) {
	detections := resp.DashboardDetections()
	detJSON, err := json.Marshal(detections)
	if err != nil {
		return meta.AnalysisUpdate{}, fmt.Errorf("failed to marshal detections: %w", err)
	}

	confFire := resp.ConfidenceFire()
	confSmoke := resp.ConfidenceSmoke()

	upd := meta.AnalysisUpdate{
		Detections:     detJSON,
		DetectionCount: len(detections),
		HasFire:        resp.HasFire,
		HasSmoke:       resp.HasSmoke,
	}
	if confFire > 0 {
		upd.ConfidenceFire = &confFire
	}
	if confSmoke > 0 {
		upd.ConfidenceSmoke = &confSmoke
	}
	if score := max(confFire, confSmoke); score > 0 {
		upd.ConfidenceScore = &score
	}
	return upd, nil
}

package meta

import (
	"context"
	"errors"
	"fmt"
	"time"

	"imagevault/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrAnalysisNotFound = errors.New("execution analysis not found")
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. 重处理目标查询 (Reprocess Targets)
// -----------------------------------------------------------------------------

// Target 是一条待重跑推理的 execution
type Target struct {
	ExecutionID  int64
	OriginalPath string
	ImageDigest  types.Digest
}

// ReprocessTargets 找出 “有检测记录但第一个 bbox 宽度为 0” 的 execution
// 这是历史 bug 留下的坏数据特征：YOLO 跑过、但坐标全是 0
// limit <= 0 表示不限制
func (r *Repository) ReprocessTargets(ctx context.Context, limit int) ([]Target, error) {
	conn := r.db.GetConn().WithContext(ctx)

	// JSON 取路径的语法 PG 和 SQLite 不一样，按方言分支
	// (测试环境用内存 SQLite 代替 Postgres，这个分支就是为它留的)
	var widthExpr string
	switch conn.Dialector.Name() {
	case "postgres":
		widthExpr = "(ea.detections->0->'bounding_box'->>'width')::numeric = 0"
	default: // sqlite
		widthExpr = "json_extract(ea.detections, '$[0].bounding_box.width') = 0"
	}

	query := fmt.Sprintf(`
		SELECT ea.execution_id, ei.original_path, ei.image_digest
		FROM execution_analysis ea
		JOIN execution_images ei ON ea.execution_id = ei.execution_id
		WHERE ea.detections IS NOT NULL
		  AND ea.detection_count > 0
		  AND %s
		ORDER BY ea.execution_id`, widthExpr)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	var rows []struct {
		ExecutionID  int64
		OriginalPath string
		ImageDigest  string
	}
	if err := conn.Raw(query).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query reprocess targets: %w", err)
	}

	targets := make([]Target, 0, len(rows))
	for _, row := range rows {
		targets = append(targets, Target{
			ExecutionID:  row.ExecutionID,
			OriginalPath: row.OriginalPath,
			ImageDigest:  types.Digest(row.ImageDigest),
		})
	}
	return targets, nil
}

// -----------------------------------------------------------------------------
// 2. 分析结果更新 (Analysis Update)
// -----------------------------------------------------------------------------

// AnalysisUpdate 是一次重跑推理后要写回的字段集
type AnalysisUpdate struct {
	Detections      datatypes.JSON // dashboard xywh 格式的 JSON 数组
	DetectionCount  int
	HasFire         bool
	HasSmoke        bool
	ConfidenceFire  *float64
	ConfidenceSmoke *float64
	ConfidenceScore *float64
}

// UpdateAnalysis 覆盖一条 execution_analysis 记录
// 只 UPDATE 不 INSERT：目标行必须已存在，影响行数为 0 视为 not found
func (r *Repository) UpdateAnalysis(ctx context.Context, executionID int64, upd AnalysisUpdate) error {
	result := r.db.GetConn().WithContext(ctx).
		Model(&ExecutionAnalysis{}).
		Where("execution_id = ?", executionID).
		Updates(map[string]any{
			"detections":       upd.Detections,
			"detection_count":  upd.DetectionCount,
			"has_fire":         upd.HasFire,
			"has_smoke":        upd.HasSmoke,
			"confidence_fire":  upd.ConfidenceFire,
			"confidence_smoke": upd.ConfidenceSmoke,
			"confidence_score": upd.ConfidenceScore,
			"updated_at":       time.Now().UTC(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update analysis for execution %d: %w", executionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAnalysisNotFound
	}
	return nil
}

// -----------------------------------------------------------------------------
// 3. 图像关联 (Execution Images)
// -----------------------------------------------------------------------------

// RecordImage 把一次 execution 关联到 CAS 里的图像
// 幂等：同一个 execution 重复记录时覆盖 (推理服务可能重试)
func (r *Repository) RecordImage(ctx context.Context, executionID int64, digest types.Digest, location string) error {
	img := ExecutionImage{
		ExecutionID:  executionID,
		OriginalPath: location,
		ImageDigest:  digest.String(),
	}

	err := r.db.GetConn().WithContext(ctx).Save(&img).Error
	if err != nil {
		return fmt.Errorf("failed to record image for execution %d: %w", executionID, err)
	}
	return nil
}

// GetImage 查一次 execution 的图像关联
func (r *Repository) GetImage(ctx context.Context, executionID int64) (*ExecutionImage, error) {
	var img ExecutionImage
	err := r.db.GetConn().WithContext(ctx).
		Where("execution_id = ?", executionID).
		First(&img).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

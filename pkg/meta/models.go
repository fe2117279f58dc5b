package meta

import (
	"time"

	"gorm.io/datatypes"
)

// ExecutionAnalysis 是 dashboard 的检测分析记录
// reprocess 只写这张表，绝不碰 executions 表
type ExecutionAnalysis struct {
	// ExecutionID 是主键，指向 dashboard 的 executions 表
	ExecutionID int64 `gorm:"primaryKey"`

	// Detections: JSONB 数组，dashboard xywh 格式
	// [{"class": "fire", "confidence": 0.87, "bounding_box": {"x":..,"y":..,"width":..,"height":..}}]
	Detections datatypes.JSON

	DetectionCount int
	HasFire        bool
	HasSmoke       bool

	// 置信度列：没有检出时存 NULL，不是 0 —— 所以用指针
	ConfidenceFire  *float64
	ConfidenceSmoke *float64
	ConfidenceScore *float64

	UpdatedAt time.Time
}

// TableName 强制指定表名 (dashboard 的既有 schema，不归我们管)
func (ExecutionAnalysis) TableName() string {
	return "execution_analysis"
}

// ExecutionImage 把一次 execution 关联到它的原始图像
type ExecutionImage struct {
	ExecutionID int64 `gorm:"primaryKey"`

	// OriginalPath 是推理服务落盘时记下的位置 (storage.Result.Location)
	// 【约定】不透明字符串，只用来展示和兜底读取，不做解析
	OriginalPath string `gorm:"type:text"`

	// ImageDigest 是 CAS 里的 SHA256 Hex，内容寻址的权威引用
	// 有了它，图像搬到哪个后端都能找回来
	ImageDigest string `gorm:"type:char(64);index"`

	CreatedAt time.Time
}

func (ExecutionImage) TableName() string {
	return "execution_images"
}

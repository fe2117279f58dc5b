package meta

import (
	"fmt"
	"testing"

	"imagevault/pkg/types"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestRepo 构建隔离的测试环境
// 用内存 SQLite 代替 Postgres：测试极速运行且无外部依赖
func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	metaDB := NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(&ExecutionAnalysis{}, &ExecutionImage{}))

	return NewRepository(metaDB)
}

// 两种典型的 detections 形态
const (
	// 历史 bug 的特征：跑过 YOLO 但坐标全是 0
	zeroWidthDetections = `[{"class":"fire","confidence":0.5,"bounding_box":{"x":0,"y":0,"width":0,"height":0}}]`
	// 正常记录
	normalDetections = `[{"class":"smoke","confidence":0.7,"bounding_box":{"x":10,"y":20,"width":50,"height":60}}]`
)

// seedAnalysis 插入一条 execution_analysis
func seedAnalysis(t *testing.T, repo *Repository, executionID int64, detections string, count int) {
	t.Helper()
	row := ExecutionAnalysis{
		ExecutionID:    executionID,
		DetectionCount: count,
	}
	if detections != "" {
		row.Detections = datatypes.JSON(detections)
	}
	require.NoError(t, repo.db.GetConn().Create(&row).Error)
}

// seedImage 插入一条 execution_images 关联
func seedImage(t *testing.T, repo *Repository, executionID int64, path string, digest types.Digest) {
	t.Helper()
	row := ExecutionImage{
		ExecutionID:  executionID,
		OriginalPath: path,
		ImageDigest:  digest.String(),
	}
	require.NoError(t, repo.db.GetConn().Create(&row).Error)
}

// mockDigest 生成一个格式合法的 64 字符 Digest
func mockDigest(seed byte) types.Digest {
	buf := make([]byte, 64)
	const hex = "0123456789abcdef"
	for i := range buf {
		buf[i] = hex[int(seed+byte(i))%16]
	}
	return types.Digest(buf)
}

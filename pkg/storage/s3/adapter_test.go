package s3

import (
	"context"
	"net"
	"testing"
	"time"

	"imagevault/pkg/core"
	"imagevault/pkg/storage"
	"imagevault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// 1. 纯逻辑单测 (不需要 MinIO)
// -----------------------------------------------------------------------------

func TestObjectKey_Layout(t *testing.T) {
	// 不走 NewAdapter：Key 推导是纯函数，直接构造就能测
	adapter := &Adapter{bucket: "sai-images", depth: 2, width: 2, ext: ".jpg"}

	digest := types.Digest("abcd1234" + "00000000000000000000000000000000000000000000000000000000")

	assert.Equal(t, "ab/cd/"+digest.String()+".jpg", adapter.objectKey(digest, ""))
	assert.Equal(t, "ab/cd/"+digest.String()+".png", adapter.objectKey(digest, ".png"))
	assert.Equal(t, "s3://sai-images/ab/cd/"+digest.String()+".jpg", adapter.Locate(digest, ""))

	// 磁盘后端和 S3 后端的分片语义必须一致 —— 换后端不换布局
	flat := &Adapter{bucket: "sai-images", depth: 0, width: 0, ext: ".jpg"}
	assert.Equal(t, digest.String()+".jpg", flat.objectKey(digest, ""))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", contentType(".jpg"))
	assert.Equal(t, "image/jpeg", contentType(".JPEG"))
	assert.Equal(t, "image/png", contentType(".png"))
	assert.Equal(t, "application/octet-stream", contentType(".bin"))
}

func TestNewAdapter_ConfigValidation(t *testing.T) {
	ctx := context.Background()

	_, err := NewAdapter(ctx, Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is required")

	_, err = NewAdapter(ctx, Config{Bucket: "b", ShardDepth: 2, ShardWidth: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shard width")

	_, err = NewAdapter(ctx, Config{Bucket: "b", ShardDepth: 8, ShardWidth: 8})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds digest length")
}

func TestAdapter_MalformedDigest(t *testing.T) {
	// 不需要 MinIO：非法 Digest 必须在发任何请求之前就被拦下
	adapter := &Adapter{bucket: "sai-images", depth: 2, width: 2, ext: ".jpg"}
	ctx := context.Background()

	for _, bad := range []types.Digest{"", "abc"} {
		_, err := adapter.Get(ctx, bad, "")
		assert.ErrorIs(t, err, storage.ErrNotFound, "digest %q", bad)

		exists, err := adapter.Has(ctx, bad, "")
		require.NoError(t, err)
		assert.False(t, exists, "digest %q", bad)

		// Delete 先 Has 再删，非法 Digest 在 Has 那层就回绝了
		deleted, err := adapter.Delete(ctx, bad, "")
		require.NoError(t, err)
		assert.False(t, deleted, "digest %q", bad)

		assert.NotPanics(t, func() { adapter.Locate(bad, "") }, "digest %q", bad)
	}
}

// -----------------------------------------------------------------------------
// 2. 集成测试 (需要本地 MinIO，没有就跳过)
// -----------------------------------------------------------------------------

// 检查本地 MinIO 端口是否开放 (9000)
func isMinIOAvailable(t *testing.T) bool {
	host := "localhost:9000"
	conn, err := net.DialTimeout("tcp", host, 1*time.Second)
	if err != nil {
		t.Logf("⚠️ MinIO not reachable at %s. Skipping integration tests.", host)
		return false
	}
	conn.Close()
	return true
}

func TestS3Adapter_Integration(t *testing.T) {
	if !isMinIOAvailable(t) {
		t.Skip("Skipping S3 integration tests (MinIO down)")
	}

	cfg := Config{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		Bucket:          "imagevault-test-bucket", // 专用测试桶
		AccessKeyID:     "admin",
		SecretAccessKey: "password",
		ShardDepth:      2,
		ShardWidth:      2,
	}

	ctx := context.Background()
	store, err := NewAdapter(ctx, cfg)
	require.NoError(t, err, "Failed to connect to MinIO")

	// 每次跑用时间戳拌进 payload，避免上一轮测试的残留对象干扰去重断言
	payload := []byte("Hello S3 World from ImageVault " + time.Now().String())
	digest := core.DigestOf(payload)

	t.Run("Put", func(t *testing.T) {
		res, err := store.Put(ctx, payload, "", nil)
		require.NoError(t, err)
		assert.Equal(t, digest, res.Digest)
		assert.False(t, res.IsDuplicate)
		assert.Equal(t, int64(len(payload)), res.Size)
	})

	t.Run("PutDedup", func(t *testing.T) {
		res, err := store.Put(ctx, payload, "", nil)
		require.NoError(t, err)
		assert.True(t, res.IsDuplicate, "Second put of identical bytes must dedup")
	})

	t.Run("Has", func(t *testing.T) {
		exists, err := store.Has(ctx, digest, "")
		require.NoError(t, err)
		assert.True(t, exists, "Object should exist in S3")

		exists, err = store.Has(ctx, types.Digest("ffffffff00000000000000000000000000000000000000000000000000000000"), "")
		require.NoError(t, err)
		assert.False(t, exists, "Non-existent object should return false")
	})

	t.Run("Get", func(t *testing.T) {
		data, err := store.Get(ctx, digest, "")
		require.NoError(t, err)
		assert.Equal(t, payload, data, "Content read from S3 should match")
	})

	t.Run("GetNotFound", func(t *testing.T) {
		_, err := store.Get(ctx, types.Digest("ffffffff00000000000000000000000000000000000000000000000000000000"), "")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		deleted, err := store.Delete(ctx, digest, "")
		require.NoError(t, err)
		assert.True(t, deleted)

		// 第二次删：对象已经没了
		deleted, err = store.Delete(ctx, digest, "")
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = store.Get(ctx, digest, "")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

package inference

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Defaults(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err, "URL is mandatory")

	client, err := NewClient(Config{URL: "http://localhost:8888/api/v1/infer"})
	require.NoError(t, err)
	assert.InDelta(t, DefaultConfidenceThreshold, client.cfg.ConfidenceThreshold, 1e-9)
	assert.InDelta(t, DefaultIOUThreshold, client.cfg.IOUThreshold, 1e-9)
	assert.Equal(t, DefaultTimeout, client.cfg.Timeout)
}

func TestInfer_RequestShape(t *testing.T) {
	imageBytes := []byte("fake jpeg payload")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 校验请求形状：multipart POST，file 部分带 image/jpeg
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "frame.jpg", header.Filename)
		assert.Equal(t, "image/jpeg", header.Header.Get("Content-Type"))

		assert.Equal(t, "0.25", r.FormValue("confidence_threshold"))
		assert.Equal(t, "0.1", r.FormValue("iou_threshold"))
		assert.Equal(t, "false", r.FormValue("return_image"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"detections":[],"detection_count":0,"has_fire":false,"has_smoke":false,"confidence_scores":{}}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)

	resp, err := client.Infer(context.Background(), "frame.jpg", imageBytes)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.DetectionCount)
	assert.Empty(t, resp.Detections)
}

func TestInfer_ParsesDetections(t *testing.T) {
	// 带枚举风格 confidence_scores Key 的新版应答
	const payload = `{
		"detections": [
			{"class_name": "fire", "confidence": 0.91, "bbox": {"x1": 100, "y1": 120, "x2": 140, "y2": 175}},
			{"class": "smoke", "confidence": 0.63, "bbox": {"x1": 10, "y1": 20, "x2": 60, "y2": 80}}
		],
		"detection_count": 2,
		"has_fire": true,
		"has_smoke": true,
		"confidence_scores": {"DetectionClass.FIRE": 0.91, "DetectionClass.SMOKE": 0.63}
	}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)

	resp, err := client.Infer(context.Background(), "frame.jpg", []byte("img"))
	require.NoError(t, err)

	assert.Equal(t, 2, resp.DetectionCount)
	assert.True(t, resp.HasFire)
	assert.True(t, resp.HasSmoke)

	// 枚举风格的 Key 也能取到置信度
	assert.InDelta(t, 0.91, resp.ConfidenceFire(), 1e-9)
	assert.InDelta(t, 0.63, resp.ConfidenceSmoke(), 1e-9)

	// xyxy -> xywh 转换
	dets := resp.DashboardDetections()
	require.Len(t, dets, 2)
	assert.Equal(t, "fire", dets[0].Class)
	assert.InDelta(t, 100.0, dets[0].BoundingBox.X, 1e-9)
	assert.InDelta(t, 120.0, dets[0].BoundingBox.Y, 1e-9)
	assert.InDelta(t, 40.0, dets[0].BoundingBox.Width, 1e-9)
	assert.InDelta(t, 55.0, dets[0].BoundingBox.Height, 1e-9)

	// 旧版只有 class 字段的检测同样能转
	assert.Equal(t, "smoke", dets[1].Class)
	assert.InDelta(t, 50.0, dets[1].BoundingBox.Width, 1e-9)
}

func TestInfer_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)

	_, err = client.Infer(context.Background(), "frame.jpg", []byte("img"))
	require.Error(t, err)
	// 错误里带状态码和 body 片段，方便排错
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestRawDetection_Label(t *testing.T) {
	tests := []struct {
		name string
		det  RawDetection
		want string
	}{
		{"prefers class_name", RawDetection{ClassName: "fire", Class: "smoke"}, "fire"},
		{"falls back to class", RawDetection{Class: "smoke"}, "smoke"},
		{"unknown when both empty", RawDetection{}, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.det.Label())
		})
	}
}

func TestResponse_ConfidenceFor_PlainKeys(t *testing.T) {
	resp := &Response{ConfidenceScores: map[string]float64{"fire": 0.8, "smoke": 0.5}}
	assert.InDelta(t, 0.8, resp.ConfidenceFire(), 1e-9)
	assert.InDelta(t, 0.5, resp.ConfidenceSmoke(), 1e-9)

	empty := &Response{}
	assert.Zero(t, empty.ConfidenceFire())
}

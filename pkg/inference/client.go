package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"
)

// 默认值和 dashboard 侧保持一致
const (
	DefaultConfidenceThreshold = 0.25
	DefaultIOUThreshold        = 0.1
	DefaultTimeout             = 30 * time.Second // 单张图的推理上限
)

// Config 推理服务客户端配置
type Config struct {
	URL                 string // 例如 http://localhost:8888/api/v1/infer
	ConfidenceThreshold float64
	IOUThreshold        float64
	Timeout             time.Duration
}

// Client 是 YOLO 推理服务的 HTTP 客户端
// 协议：multipart POST 一张图，拿回 JSON 检测结果
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("inference: url is required")
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.IOUThreshold == 0 {
		cfg.IOUThreshold = DefaultIOUThreshold
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// -----------------------------------------------------------------------------
// 响应模型 (推理服务的 JSON)
// -----------------------------------------------------------------------------

// RawBBox 是 YOLO 原生的 xyxy 坐标
type RawBBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// RawDetection 是推理服务返回的单条检测
// class_name 是新版字段，旧版只有 class —— 两个都接
type RawDetection struct {
	ClassName  string  `json:"class_name"`
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	BBox       RawBBox `json:"bbox"`
}

// Label 取类别名，按 class_name -> class -> "unknown" 的优先级兜底
func (d RawDetection) Label() string {
	if d.ClassName != "" {
		return d.ClassName
	}
	if d.Class != "" {
		return d.Class
	}
	return "unknown"
}

// Response 推理服务的完整应答
type Response struct {
	Detections     []RawDetection     `json:"detections"`
	DetectionCount int                `json:"detection_count"`
	HasFire        bool               `json:"has_fire"`
	HasSmoke       bool               `json:"has_smoke"`
	// confidence_scores 的 Key 可能是 "fire"/"smoke"，
	// 也可能是枚举序列化出来的 "DetectionClass.FIRE" —— 用 map 接，取的时候兜底
	ConfidenceScores map[string]float64 `json:"confidence_scores"`
}

// ConfidenceFor 取某个类别的置信度，同时兼容两种 Key 风格
func (r *Response) ConfidenceFor(class string, enumKey string) float64 {
	if v, ok := r.ConfidenceScores[class]; ok && v > 0 {
		return v
	}
	return r.ConfidenceScores[enumKey]
}

func (r *Response) ConfidenceFire() float64 {
	return r.ConfidenceFor("fire", "DetectionClass.FIRE")
}

func (r *Response) ConfidenceSmoke() float64 {
	return r.ConfidenceFor("smoke", "DetectionClass.SMOKE")
}

// -----------------------------------------------------------------------------
// dashboard 格式转换 (xyxy -> xywh)
// -----------------------------------------------------------------------------

// BoundingBox 是 dashboard 的 xywh 格式
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Detection 是 dashboard 的检测记录格式 (写进 execution_analysis.detections)
type Detection struct {
	Class       string      `json:"class"`
	Confidence  float64     `json:"confidence"`
	BoundingBox BoundingBox `json:"bounding_box"`
}

// DashboardDetections 把 YOLO 的 xyxy 检测转成 dashboard 的 xywh 格式
func (r *Response) DashboardDetections() []Detection {
	out := make([]Detection, 0, len(r.Detections))
	for _, det := range r.Detections {
		out = append(out, Detection{
			Class:      det.Label(),
			Confidence: det.Confidence,
			BoundingBox: BoundingBox{
				X:      det.BBox.X1,
				Y:      det.BBox.Y1,
				Width:  det.BBox.X2 - det.BBox.X1,
				Height: det.BBox.Y2 - det.BBox.Y1,
			},
		})
	}
	return out
}

// -----------------------------------------------------------------------------
// 请求
// -----------------------------------------------------------------------------

// Infer 把一张图 POST 给推理服务并解析结果
// filename 只用于 multipart 里的文件名提示，不影响推理
func (c *Client) Infer(ctx context.Context, filename string, image []byte) (*Response, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	// 文件部分：显式标 Content-Type 为 image/jpeg
	// (标准库的 CreateFormFile 写死 application/octet-stream，服务端不认)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image part: %w", err)
	}

	// 表单参数
	fields := map[string]string{
		"confidence_threshold": strconv.FormatFloat(c.cfg.ConfidenceThreshold, 'f', -1, 64),
		"iou_threshold":        strconv.FormatFloat(c.cfg.IOUThreshold, 'f', -1, 64),
		"return_image":         "false", // 只要坐标，不要回传渲染图
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// 读一点 body 方便排错，别全量读（可能是一大坨 HTML）
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("inference returned %d: %s", resp.StatusCode, snippet)
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode inference response: %w", err)
	}
	return &result, nil
}

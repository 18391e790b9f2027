package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"Trellis3D-server/config"
	"Trellis3D-server/models"
)

// Generator 生成引擎的能力接口：一次调用，同步阻塞到拿结果或失败
type Generator interface {
	Generate(ctx context.Context, req models.Generate3DRequest) (models.TrellisOutput, error)
}

var Engine Generator

// firtoz/trellis 在 Replicate 上的版本号，可在配置文件里覆盖
const DefaultTrellisVersion = "e8f6c45206993f297372f5436b90350817bd9b4a0d52d2a76df50c1c8afa2b3c"

// TrellisClient 调 Replicate 托管的 Trellis 模型
type TrellisClient struct {
	APIToken     string
	BaseURL      string
	Version      string
	HTTPClient   *http.Client
	PollInterval time.Duration
	PollTimeout  time.Duration
}

// InitTrellis 初始化，在 main.go 中调用
func InitTrellis() {
	cfg := config.AppConfig.Replicate
	version := cfg.Version
	if version == "" {
		version = DefaultTrellisVersion
	}
	Engine = &TrellisClient{
		APIToken: cfg.APIToken,
		BaseURL:  cfg.BaseURL,
		Version:  version,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		PollInterval: 3 * time.Second,
		// 显卡生成较慢，轮询上限放宽到 30 分钟
		PollTimeout: 30 * time.Minute,
	}
	if cfg.APIToken == "" {
		log.Println("警告: REPLICATE_API_TOKEN 未配置，提交会被 Replicate 拒绝")
	}
}

// Replicate prediction 响应（只取用到的字段）
type predictionResp struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  interface{}     `json:"error"`
	Detail string          `json:"detail"`
}

// Generate 提交 prediction 并轮询到终态
// Replicate 本身没有中间进度回调，这里拿不到百分比，只能阻塞等
func (c *TrellisClient) Generate(ctx context.Context, req models.Generate3DRequest) (models.TrellisOutput, error) {
	pred, err := c.createPrediction(ctx, req)
	if err != nil {
		return nil, err
	}
	// 极少数情况下创建响应已经是终态（排队为空时），不用再轮询
	if output, done, err := finishPrediction(pred); done {
		return output, err
	}
	log.Printf("任务已提交，Prediction ID: %s，开始轮询结果...", pred.ID)
	return c.pollPrediction(ctx, pred.ID)
}

func (c *TrellisClient) createPrediction(ctx context.Context, req models.Generate3DRequest) (*predictionResp, error) {
	reqBody := map[string]interface{}{
		"version": c.Version,
		"input":   req,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/predictions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %v", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("replicate request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %v", err)
	}
	var pred predictionResp
	if err := json.Unmarshal(bodyBytes, &pred); err != nil {
		return nil, fmt.Errorf("decode response failed: %v, body: %s", err, truncate(string(bodyBytes), 2000))
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		if pred.Detail != "" {
			return nil, fmt.Errorf("replicate status %d: %s", resp.StatusCode, pred.Detail)
		}
		return nil, fmt.Errorf("replicate status %d: %s", resp.StatusCode, truncate(string(bodyBytes), 2000))
	}
	if pred.ID == "" {
		return nil, fmt.Errorf("response missing prediction id")
	}
	return &pred, nil
}

// pollPrediction 轮询 GET /predictions/{id} 直到 succeeded / failed / canceled
func (c *TrellisClient) pollPrediction(ctx context.Context, predictionID string) (models.TrellisOutput, error) {
	predURL := fmt.Sprintf("%s/predictions/%s", c.BaseURL, predictionID)

	interval := c.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	maxWait := c.PollTimeout
	if maxWait <= 0 {
		maxWait = 30 * time.Minute
	}

	timeout := time.After(maxWait)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return nil, fmt.Errorf("polling timeout")
		case <-ctx.Done():
			return nil, fmt.Errorf("polling canceled: %v", ctx.Err())
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, predURL, nil)
			if err != nil {
				log.Printf("创建请求失败: %v", err)
				continue
			}
			req.Header.Set("Authorization", "Bearer "+c.APIToken)

			resp, err := c.HTTPClient.Do(req)
			if err != nil {
				log.Printf("轮询网络错误(重试中): %v", err)
				continue
			}
			bodyBytes, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				log.Printf("读取响应体失败: %v", err)
				continue
			}
			var pred predictionResp
			if err := json.Unmarshal(bodyBytes, &pred); err != nil {
				log.Printf("解析响应失败: %v, body: %s", err, truncate(string(bodyBytes), 2000))
				continue
			}

			if output, done, err := finishPrediction(&pred); done {
				return output, err
			}
			// starting / processing 继续轮询
		}
	}
}

// finishPrediction 终态判定：succeeded 解出产物，failed/canceled 带上提供方的错误原因
func finishPrediction(pred *predictionResp) (models.TrellisOutput, bool, error) {
	switch pred.Status {
	case "succeeded":
		output := models.TrellisOutput{}
		if len(pred.Output) > 0 {
			if err := json.Unmarshal(pred.Output, &output); err != nil {
				return nil, true, fmt.Errorf("decode output failed: %v", err)
			}
		}
		return output, true, nil
	case "failed", "canceled":
		return nil, true, fmt.Errorf("prediction %s: %s", pred.Status, errorString(pred.Error))
	}
	return nil, false, nil
}

// errorString Replicate 的 error 字段可能是 string 也可能是结构，统一转成字符串
func errorString(v interface{}) string {
	if v == nil {
		return "unknown error"
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

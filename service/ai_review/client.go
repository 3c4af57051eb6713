/*
 * @module service/ai_review/client
 * @description 生成式模型HTTP客户端，封装generateContent调用与限流重试退避
 * @architecture 分层架构 - AI评审传输层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 构建请求 -> 调用 -> 429/5xx指数退避重试 -> 提取文本
 * @rules 仅429和5xx可重试；4xx、响应格式错误、空文本立即失败
 * @dependencies net/http, encoding/json
 * @refs config.go, orchestrator.go
 */

package ai_review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Caller 生成式模型调用接口，编排器仅依赖该契约
type Caller interface {
	Generate(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// APIError 模型端点返回的非2xx响应
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("AI接口返回错误状态 %d: %s", e.StatusCode, e.Body)
}

// Retriable 判断该错误是否允许重试（限流或服务端错误）
func (e *APIError) Retriable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// GeminiClient 基于 generativelanguage REST 接口的模型客户端
type GeminiClient struct {
	config     Config
	httpClient *http.Client
}

// NewGeminiClient 创建模型客户端实例
func NewGeminiClient(config Config) *GeminiClient {
	return &GeminiClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	Contents          []geminiContent        `json:"contents"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate 调用模型生成文本，在限流和服务端错误下按指数退避自动重试
// 重试耗尽后返回最后一次错误
func (c *GeminiClient) Generate(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	delay := c.config.RetryBaseDelay

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			retryAttemptsTotal.Inc()
			slog.Warn("AI调用重试", "model", model, "attempt", attempt, "delay", delay, "error", lastErr)
			if err := wait(ctx, delay); err != nil {
				return "", err
			}
			delay *= 2
		}

		text, err := c.generateOnce(ctx, model, systemPrompt, userPrompt)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retriable() {
			return "", err
		}
	}

	return "", fmt.Errorf("重试 %d 次后调用仍然失败: %w", c.config.MaxRetries, lastErr)
}

// generateOnce 执行单次模型调用
func (c *GeminiClient) generateOnce(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	baseURL := c.config.APIURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	url := baseURL + model + ":generateContent?key=" + c.config.APIKey

	payload := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemPrompt}},
		},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userPrompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.2,
			ResponseMIMEType: "application/json",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("构建请求体失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("AI响应为空")
	}
	text := geminiResp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", errors.New("AI响应文本为空")
	}
	return text, nil
}

// wait 可取消的定时等待
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

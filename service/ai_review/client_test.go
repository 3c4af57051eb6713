/*
 * @module service/ai_review/client_test
 * @description 模型客户端重试退避行为测试
 * @architecture 测试层
 * @documentReference ai_docs/test_plan.md
 * @stateFlow 启动httptest服务 -> 注入失败序列 -> 断言重试次数与结果
 * @rules 测试配置注入零延迟，不依赖真实时间
 * @dependencies net/http/httptest, github.com/stretchr/testify
 * @refs client.go
 */

package ai_review

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClientConfig 零延迟测试配置
func testClientConfig(url string) Config {
	config := DefaultConfig()
	config.APIURL = url + "/"
	config.APIKey = "test-key"
	config.MaxRetries = 3
	config.RetryBaseDelay = 0
	config.RequestTimeout = 5 * time.Second
	return config
}

// geminiTextResponse 构造单候选文本响应体
func geminiTextResponse(text string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{
				"parts": []map[string]string{{"text": text}},
			}},
		},
	})
	return body
}

func TestGenerate_成功返回文本(t *testing.T) {
	var gotPath string
	var gotBody geminiRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write(geminiTextResponse(`[{"testId":"TC001"}]`))
	}))
	defer server.Close()

	client := NewGeminiClient(testClientConfig(server.URL))
	text, err := client.Generate(context.Background(), "gemini-2.0-flash", "system", "user")

	require.NoError(t, err)
	assert.Equal(t, `[{"testId":"TC001"}]`, text)
	assert.Equal(t, "/gemini-2.0-flash:generateContent?key=test-key", gotPath)
	assert.Equal(t, "system", gotBody.SystemInstruction.Parts[0].Text)
	assert.Equal(t, "user", gotBody.Contents[0].Parts[0].Text)
	assert.Equal(t, 0.2, gotBody.GenerationConfig.Temperature)
	assert.Equal(t, "application/json", gotBody.GenerationConfig.ResponseMIMEType)
}

func TestGenerate_限流错误重试后成功(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(geminiTextResponse("ok"))
	}))
	defer server.Close()

	client := NewGeminiClient(testClientConfig(server.URL))
	text, err := client.Generate(context.Background(), "m", "s", "u")

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, attempts)
}

func TestGenerate_重试耗尽后失败(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewGeminiClient(testClientConfig(server.URL))
	_, err := client.Generate(context.Background(), "m", "s", "u")

	require.Error(t, err)
	// 首次调用 + MaxRetries 次重试
	assert.Equal(t, 4, attempts)
}

func TestGenerate_服务端错误可重试(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(geminiTextResponse("recovered"))
	}))
	defer server.Close()

	client := NewGeminiClient(testClientConfig(server.URL))
	text, err := client.Generate(context.Background(), "m", "s", "u")

	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, attempts)
}

func TestGenerate_客户端错误不重试(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewGeminiClient(testClientConfig(server.URL))
	_, err := client.Generate(context.Background(), "m", "s", "u")

	require.Error(t, err)
	assert.Equal(t, 1, attempts)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.False(t, apiErr.Retriable())
}

func TestGenerate_空响应视为失败(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"无候选", `{"candidates":[]}`},
		{"候选无文本", `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`},
		{"非JSON响应", `not json at all`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewGeminiClient(testClientConfig(server.URL))
			_, err := client.Generate(context.Background(), "m", "s", "u")
			assert.Error(t, err)
		})
	}
}

func TestGenerate_上下文取消中止重试(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	config := testClientConfig(server.URL)
	config.RetryBaseDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewGeminiClient(config)
	_, err := client.Generate(ctx, "m", "s", "u")

	assert.ErrorIs(t, err, context.Canceled)
}

/*
 * @module service/ai_review/config
 * @description AI评审配置，批次大小、重试上限、退避延迟、置信度阈值等可调常量
 * @architecture 分层架构 - AI评审编排层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 环境变量读取 -> 默认值回填 -> 配置对象注入编排器
 * @rules 所有限流与阈值常量均为显式配置，管线内部不做环境变量查找
 * @dependencies github.com/spf13/cast, os, time
 * @refs orchestrator.go, client.go
 */

package ai_review

import (
	"os"
	"time"

	"github.com/spf13/cast"
)

// 配置默认值
const (
	DefaultAPIURL              = "https://generativelanguage.googleapis.com/v1beta/models/"
	DefaultPrimaryModel        = "gemini-2.0-flash"
	DefaultFallbackModel       = "gemini-2.0-flash"
	DefaultBatchSize           = 12
	DefaultMaxRetries          = 3
	DefaultRetryBaseDelay      = 3 * time.Second
	DefaultBatchDelay          = 2 * time.Second
	DefaultRewriteDelay        = time.Second
	DefaultConfidenceThreshold = 70
	DefaultRequestTimeout      = 60 * time.Second
)

// Config AI评审编排配置
type Config struct {
	APIURL        string // 生成式模型端点基础URL
	APIKey        string
	PrimaryModel  string // 批量评审使用的主模型
	FallbackModel string // 改写使用的回退模型

	BatchSize           int           // 每批提交的用例行数
	MaxRetries          int           // 单次调用在限流/服务端错误下的最大重试次数
	RetryBaseDelay      time.Duration // 重试退避起始延迟，逐次翻倍
	BatchDelay          time.Duration // 批次间固定间隔，主动限速
	RewriteDelay        time.Duration // 改写调用间固定间隔
	ConfidenceThreshold int           // 低于该置信度触发改写
	RequestTimeout      time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		APIURL:              DefaultAPIURL,
		PrimaryModel:        DefaultPrimaryModel,
		FallbackModel:       DefaultFallbackModel,
		BatchSize:           DefaultBatchSize,
		MaxRetries:          DefaultMaxRetries,
		RetryBaseDelay:      DefaultRetryBaseDelay,
		BatchDelay:          DefaultBatchDelay,
		RewriteDelay:        DefaultRewriteDelay,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		RequestTimeout:      DefaultRequestTimeout,
	}
}

// LoadConfig 从环境变量加载配置，缺失项使用默认值
func LoadConfig() Config {
	config := DefaultConfig()

	config.APIURL = getEnvWithDefault("AI_API_URL", config.APIURL)
	config.APIKey = os.Getenv("AI_API_KEY")
	config.PrimaryModel = getEnvWithDefault("AI_MODEL_PRIMARY", config.PrimaryModel)
	config.FallbackModel = getEnvWithDefault("AI_MODEL_FALLBACK", config.FallbackModel)

	if val := os.Getenv("AI_BATCH_SIZE"); val != "" {
		if n := cast.ToInt(val); n > 0 {
			config.BatchSize = n
		}
	}
	if val := os.Getenv("AI_MAX_RETRIES"); val != "" {
		if n := cast.ToInt(val); n >= 0 {
			config.MaxRetries = n
		}
	}
	if val := os.Getenv("AI_RETRY_BASE_DELAY"); val != "" {
		if d := cast.ToDuration(val); d > 0 {
			config.RetryBaseDelay = d
		}
	}
	if val := os.Getenv("AI_BATCH_DELAY"); val != "" {
		if d := cast.ToDuration(val); d >= 0 {
			config.BatchDelay = d
		}
	}
	if val := os.Getenv("AI_REWRITE_DELAY"); val != "" {
		if d := cast.ToDuration(val); d >= 0 {
			config.RewriteDelay = d
		}
	}
	if val := os.Getenv("AI_CONFIDENCE_THRESHOLD"); val != "" {
		if n := cast.ToInt(val); n > 0 && n <= 100 {
			config.ConfidenceThreshold = n
		}
	}

	return config
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

/*
 * @module service/rate_limiter/redis_rate_limiter
 * @description 基于Redis的每日配额限流，限制单用户每日上传文件数与分析行数
 * @architecture 工具层 - 提供分布式限流能力
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 检查配额 -> 放行 -> 用量INCR计入当日窗口
 * @rules 使用Redis INCRBY和EXPIRE实现按日滚动窗口；Redis不可用时由调用方决定是否放行
 * @dependencies github.com/go-redis/redis/v8
 * @refs api/controllers/testcase_controller.go
 */

package rate_limiter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cast"
)

// 每日配额默认值
const (
	DefaultMaxFilesPerDay = 10
	DefaultMaxRowsPerDay  = 1000
)

// QuotaResult 配额检查结果
type QuotaResult struct {
	Allowed        bool   `json:"allowed"`
	Message        string `json:"message,omitempty"`
	FilesRemaining int    `json:"files_remaining"`
	RowsRemaining  int    `json:"rows_remaining"`
}

// DailyQuotaLimiter Redis每日配额限流器
type DailyQuotaLimiter struct {
	client         *redis.Client
	maxFilesPerDay int
	maxRowsPerDay  int
}

// NewDailyQuotaLimiter 创建每日配额限流器
func NewDailyQuotaLimiter() (*DailyQuotaLimiter, error) {
	host := getEnvWithDefault("REDIS_HOST", "localhost")
	port := getEnvWithDefault("REDIS_PORT", "6379")
	password := os.Getenv("REDIS_PASSWORD")
	db := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		db = cast.ToInt(dbStr)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis连接失败: %w", err)
	}

	maxFiles := DefaultMaxFilesPerDay
	if val := os.Getenv("RATE_LIMIT_FILES_PER_DAY"); val != "" {
		if n := cast.ToInt(val); n > 0 {
			maxFiles = n
		}
	}
	maxRows := DefaultMaxRowsPerDay
	if val := os.Getenv("RATE_LIMIT_ROWS_PER_DAY"); val != "" {
		if n := cast.ToInt(val); n > 0 {
			maxRows = n
		}
	}

	slog.Info("每日配额限流器初始化成功",
		"redis_host", host,
		"redis_port", port,
		"max_files_per_day", maxFiles,
		"max_rows_per_day", maxRows)

	return &DailyQuotaLimiter{
		client:         client,
		maxFilesPerDay: maxFiles,
		maxRowsPerDay:  maxRows,
	}, nil
}

// CheckQuota 检查用户当日配额是否允许新增 additionalRows 行的分析
func (l *DailyQuotaLimiter) CheckQuota(ctx context.Context, userID string, additionalRows int) (*QuotaResult, error) {
	filesUsed, err := l.getUsage(ctx, l.filesKey(userID))
	if err != nil {
		return nil, err
	}
	rowsUsed, err := l.getUsage(ctx, l.rowsKey(userID))
	if err != nil {
		return nil, err
	}

	rowsRemaining := l.maxRowsPerDay - rowsUsed
	if rowsRemaining < 0 {
		rowsRemaining = 0
	}

	if filesUsed >= l.maxFilesPerDay {
		return &QuotaResult{
			Allowed:        false,
			Message:        fmt.Sprintf("Daily file limit reached (%d files/day). Please try again tomorrow.", l.maxFilesPerDay),
			FilesRemaining: 0,
			RowsRemaining:  rowsRemaining,
		}, nil
	}

	if rowsUsed+additionalRows > l.maxRowsPerDay {
		return &QuotaResult{
			Allowed:        false,
			Message:        fmt.Sprintf("Daily row limit would be exceeded (%d rows/day). You have %d rows remaining.", l.maxRowsPerDay, rowsRemaining),
			FilesRemaining: l.maxFilesPerDay - filesUsed,
			RowsRemaining:  rowsRemaining,
		}, nil
	}

	return &QuotaResult{
		Allowed:        true,
		FilesRemaining: l.maxFilesPerDay - filesUsed,
		RowsRemaining:  l.maxRowsPerDay - rowsUsed - additionalRows,
	}, nil
}

// RecordUsage 将用量计入当日窗口，窗口在当日结束后过期
func (l *DailyQuotaLimiter) RecordUsage(ctx context.Context, userID string, files, rows int) error {
	expiry := untilEndOfDay()

	if files > 0 {
		if err := l.incrWithExpiry(ctx, l.filesKey(userID), files, expiry); err != nil {
			return err
		}
	}
	if rows > 0 {
		if err := l.incrWithExpiry(ctx, l.rowsKey(userID), rows, expiry); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭Redis连接
func (l *DailyQuotaLimiter) Close() error {
	return l.client.Close()
}

func (l *DailyQuotaLimiter) getUsage(ctx context.Context, key string) (int, error) {
	val, err := l.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("读取配额计数失败: %w", err)
	}
	return cast.ToInt(val), nil
}

func (l *DailyQuotaLimiter) incrWithExpiry(ctx context.Context, key string, delta int, expiry time.Duration) error {
	count, err := l.client.IncrBy(ctx, key, int64(delta)).Result()
	if err != nil {
		return fmt.Errorf("配额计数失败: %w", err)
	}

	// 首次计数时设置窗口过期
	if count == int64(delta) {
		if err := l.client.Expire(ctx, key, expiry).Err(); err != nil {
			return fmt.Errorf("设置配额窗口过期失败: %w", err)
		}
	}
	return nil
}

func (l *DailyQuotaLimiter) filesKey(userID string) string {
	return fmt.Sprintf("quota:files:%s:%s", userID, time.Now().Format("20060102"))
}

func (l *DailyQuotaLimiter) rowsKey(userID string) string {
	return fmt.Sprintf("quota:rows:%s:%s", userID, time.Now().Format("20060102"))
}

// untilEndOfDay 距当日结束的时长，作为配额键的过期窗口
func untilEndOfDay() time.Duration {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Add(24 * time.Hour)
	return midnight.Sub(now)
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

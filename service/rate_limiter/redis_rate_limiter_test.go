package rate_limiter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestLimiter 连接本地Redis，不可用时跳过测试
func newTestLimiter(t *testing.T) *DailyQuotaLimiter {
	limiter, err := NewDailyQuotaLimiter()
	if err != nil {
		t.Skipf("Redis不可用，跳过: %v", err)
	}
	t.Cleanup(func() { limiter.Close() })
	return limiter
}

func TestCheckQuota_新用户全额放行(t *testing.T) {
	limiter := newTestLimiter(t)
	userID := fmt.Sprintf("test-user-%d", time.Now().UnixNano())

	result, err := limiter.CheckQuota(context.Background(), userID, 100)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, limiter.maxFilesPerDay, result.FilesRemaining)
	assert.Equal(t, limiter.maxRowsPerDay-100, result.RowsRemaining)
}

func TestCheckQuota_文件数超限拒绝(t *testing.T) {
	limiter := newTestLimiter(t)
	userID := fmt.Sprintf("test-user-%d", time.Now().UnixNano())

	require.NoError(t, limiter.RecordUsage(context.Background(), userID, limiter.maxFilesPerDay, 0))

	result, err := limiter.CheckQuota(context.Background(), userID, 10)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Message, "Daily file limit reached")
	assert.Equal(t, 0, result.FilesRemaining)
}

func TestCheckQuota_行数将超限拒绝(t *testing.T) {
	limiter := newTestLimiter(t)
	userID := fmt.Sprintf("test-user-%d", time.Now().UnixNano())

	require.NoError(t, limiter.RecordUsage(context.Background(), userID, 1, limiter.maxRowsPerDay-50))

	result, err := limiter.CheckQuota(context.Background(), userID, 51)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Message, "Daily row limit would be exceeded")
	assert.Equal(t, 50, result.RowsRemaining)
}

func TestUntilEndOfDay(t *testing.T) {
	d := untilEndOfDay()
	assert.Greater(t, d, time.Duration(0))
	assert.LessOrEqual(t, d, 24*time.Hour)
}

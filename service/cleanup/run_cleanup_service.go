/*
 * @module service/cleanup/run_cleanup_service
 * @description 分析运行清理服务，定期释放失活的分析运行并清理过期簿记记录
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 定时触发 -> 释放失活运行 -> 清理过期记录 -> 记录结果
 * @rules 被放弃的运行仅释放簿记状态，行数据通过幂等重跑恢复
 * @dependencies qareview-service/service/storage, github.com/robfig/cron/v3
 * @refs service/storage/testcase_store.go
 */

package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"qareview-service/service/models"
	"qareview-service/service/storage"
)

// 清理策略默认值
const (
	DefaultStaleRunDeadline = 30 * time.Minute // ANALYZING 超过该时限视为失活
	DefaultRunRetentionDays = 30               // 已结束运行记录的保留天数
)

// RunCleanupService 分析运行清理服务
type RunCleanupService struct {
	db      *gorm.DB
	store   *storage.TestCaseStore
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// NewRunCleanupService 创建分析运行清理服务实例
func NewRunCleanupService(db *gorm.DB, store *storage.TestCaseStore) *RunCleanupService {
	ctx, cancel := context.WithCancel(context.Background())

	return &RunCleanupService{
		db:     db,
		store:  store,
		cron:   cron.New(cron.WithSeconds()),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ReleaseStaleRuns 释放失活的分析运行
func (s *RunCleanupService) ReleaseStaleRuns(ctx context.Context) error {
	released, err := s.store.ReleaseStaleRuns(DefaultStaleRunDeadline)
	if err != nil {
		return err
	}
	if released > 0 {
		slog.Info("释放失活分析运行", "released_count", released, "deadline", DefaultStaleRunDeadline)
	}
	return nil
}

// CleanupExpiredRuns 清理超过保留期的已结束运行记录
func (s *RunCleanupService) CleanupExpiredRuns(ctx context.Context, retentionDays int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -retentionDays)

	result := s.db.Where("status IN ? AND created_at < ?",
		[]string{models.AnalysisRunStatusCompleted, models.AnalysisRunStatusError}, cutoffDate).
		Delete(&models.AnalysisRun{})
	if result.Error != nil {
		return 0, fmt.Errorf("删除过期运行记录失败: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// StartScheduledCleanup 启动定时清理任务
func (s *RunCleanupService) StartScheduledCleanup() error {
	if s.started {
		return fmt.Errorf("运行清理调度器已经启动")
	}

	// 每10分钟释放一次失活运行
	_, err := s.cron.AddFunc("0 */10 * * * *", func() {
		if err := s.ReleaseStaleRuns(s.ctx); err != nil {
			slog.Error("释放失活分析运行失败", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("添加失活运行释放任务失败: %w", err)
	}

	// 每天凌晨2点清理过期运行记录
	_, err = s.cron.AddFunc("0 0 2 * * *", func() {
		deleted, err := s.CleanupExpiredRuns(s.ctx, DefaultRunRetentionDays)
		if err != nil {
			slog.Error("清理过期运行记录失败", "error", err)
			return
		}
		slog.Info("清理过期运行记录完成", "deleted_count", deleted, "retention_days", DefaultRunRetentionDays)
	})
	if err != nil {
		return fmt.Errorf("添加过期记录清理任务失败: %w", err)
	}

	s.cron.Start()
	s.started = true

	slog.Info("运行清理调度器启动成功")
	return nil
}

// StopScheduledCleanup 停止定时清理任务
func (s *RunCleanupService) StopScheduledCleanup() {
	if !s.started {
		return
	}

	s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
	s.started = false

	slog.Info("运行清理调度器已停止")
}

/*
 * @module service/storage/testcase_store
 * @description 用例行集合与汇总的持久化存储，实现管线对外的最小存取契约
 * @architecture 分层架构 - 存储层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 行集合保存 -> 按文件加载 -> 汇总覆盖写入
 * @rules 管线本身不持有持久化；存储按文件整体替换行集合，保持 rowIndex 顺序
 * @dependencies gorm.io/gorm, qareview-service/service/models
 * @refs service/models/testcase.go
 */

package storage

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"qareview-service/service/models"
)

// TestCaseStore 用例存储服务
type TestCaseStore struct {
	db *gorm.DB
}

// NewTestCaseStore 创建用例存储服务实例
func NewTestCaseStore(db *gorm.DB) *TestCaseStore {
	return &TestCaseStore{db: db}
}

// SaveRows 以文件为单位整体替换行集合
func (s *TestCaseStore) SaveRows(fileID string, rows []models.TestCase) error {
	if fileID == "" {
		return fmt.Errorf("fileID 不能为空")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", fileID).Delete(&models.TestCase{}).Error; err != nil {
			return fmt.Errorf("删除旧行集合失败: %w", err)
		}

		for i := range rows {
			rows[i].ID = ""
			rows[i].FileID = fileID
			rows[i].RowIndex = i
			if err := tx.Create(&rows[i]).Error; err != nil {
				return fmt.Errorf("保存用例行 %s 失败: %w", rows[i].TestID, err)
			}
		}
		return nil
	})
}

// LoadRows 按文件加载行集合，保持原始行顺序
func (s *TestCaseStore) LoadRows(fileID string) ([]models.TestCase, error) {
	var rows []models.TestCase
	err := s.db.Where("file_id = ?", fileID).Order("row_index ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("加载行集合失败: %w", err)
	}
	return rows, nil
}

// SaveSummary 保存或覆盖文件级汇总
func (s *TestCaseStore) SaveSummary(fileID string, summary *models.AIModuleSummary) error {
	if fileID == "" {
		return fmt.Errorf("fileID 不能为空")
	}

	record := models.FileSummary{
		FileID:              fileID,
		AverageScore:        summary.AverageScore,
		RewritePercentage:   summary.RewritePercentage,
		AutomationReadiness: summary.AutomationReadiness,
		MainIssues:          summary.MainIssues,
	}

	var existing models.FileSummary
	err := s.db.Where("file_id = ?", fileID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return s.db.Create(&record).Error
	}
	if err != nil {
		return fmt.Errorf("查询已有汇总失败: %w", err)
	}

	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	return s.db.Save(&record).Error
}

// GetSummary 获取文件级汇总，不存在时返回 gorm.ErrRecordNotFound
func (s *TestCaseStore) GetSummary(fileID string) (*models.FileSummary, error) {
	var summary models.FileSummary
	if err := s.db.Where("file_id = ?", fileID).First(&summary).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}

// CreateRun 创建分析运行记录
func (s *TestCaseStore) CreateRun(run *models.AnalysisRun) error {
	run.Status = models.AnalysisRunStatusAnalyzing
	run.StartedAt = time.Now()
	return s.db.Create(run).Error
}

// UpdateRun 更新分析运行记录
func (s *TestCaseStore) UpdateRun(run *models.AnalysisRun) error {
	return s.db.Save(run).Error
}

// ReleaseStaleRuns 将滞留在 ANALYZING 超过时限的运行记录置为 ERROR
// 被放弃的运行通过幂等重跑恢复，这里只负责释放簿记状态
func (s *TestCaseStore) ReleaseStaleRuns(olderThan time.Duration) (int64, error) {
	deadline := time.Now().Add(-olderThan)
	now := time.Now()

	result := s.db.Model(&models.AnalysisRun{}).
		Where("status = ? AND started_at < ?", models.AnalysisRunStatusAnalyzing, deadline).
		Updates(map[string]interface{}{
			"status":        models.AnalysisRunStatusError,
			"error_message": "analysis run abandoned: exceeded deadline",
			"finished_at":   &now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("释放失活运行记录失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

/*
 * @module service/models/analysis_models
 * @description AI评审扩展模型，包含评审结果、改写结果、模块汇总、分析运行记录等模型
 * @architecture 数据模型层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 批次提交 -> 评审结果回填 -> 低置信度改写 -> 模块汇总
 * @rules 评审与改写结果均以 testId 关联回原始行；无匹配行的结果直接丢弃
 * @dependencies gorm.io/gorm, time
 * @refs service/ai_review/
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AIReviewResult 单次批量评审调用的临时输出
type AIReviewResult struct {
	TestID     string `json:"testId"`
	Status     string `json:"status"` // PASS / NEEDS_REWRITE / ERROR
	Score      int    `json:"score"`  // 0-100
	Reason     string `json:"reason"`
	Confidence int    `json:"confidence"` // 0-100，评审者自报的确定性
}

// AIRewriteResult 单次改写调用的临时输出
type AIRewriteResult struct {
	TestID               string `json:"testId"`
	RewrittenDescription string `json:"rewrittenDescription"`
	RewrittenExpected    string `json:"rewrittenExpected"`
	ImprovementReason    string `json:"improvementReason"`
}

// AIModuleSummary 整次分析的模块级质量汇总
type AIModuleSummary struct {
	AverageScore        float64  `json:"averageScore"`
	RewritePercentage   float64  `json:"rewritePercentage"`
	AutomationReadiness string   `json:"automationReadiness"` // High / Medium / Low
	MainIssues          []string `json:"mainIssues"`          // 前3-5个高频问题
}

// FileSummary 持久化的文件级汇总记录
type FileSummary struct {
	ID                  string           `gorm:"type:varchar(50);primaryKey" json:"id"`
	FileID              string           `gorm:"type:varchar(50);not null;uniqueIndex" json:"file_id"`
	AverageScore        float64          `json:"average_score"`
	RewritePercentage   float64          `json:"rewrite_percentage"`
	AutomationReadiness string           `gorm:"type:varchar(20)" json:"automation_readiness"`
	MainIssues          JSONBStringArray `gorm:"type:jsonb" json:"main_issues"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// TableName 指定表名
func (FileSummary) TableName() string {
	return "file_summaries"
}

// BeforeCreate 创建前钩子
func (f *FileSummary) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}

// 分析运行状态常量
const (
	AnalysisRunStatusAnalyzing = "ANALYZING"
	AnalysisRunStatusCompleted = "COMPLETED"
	AnalysisRunStatusError     = "ERROR"
)

// AnalysisRun 一次分析运行的簿记记录，用于进度查询和失活运行清理
type AnalysisRun struct {
	ID               string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	FileID           string     `gorm:"type:varchar(50);index" json:"file_id"`
	Status           string     `gorm:"type:varchar(20);not null" json:"status"` // ANALYZING, COMPLETED, ERROR
	TotalRows        int        `json:"total_rows"`
	TotalBatches     int        `json:"total_batches"`
	CompletedBatches int        `json:"completed_batches"`
	FailedBatches    int        `json:"failed_batches"`
	RewriteCount     int        `json:"rewrite_count"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (AnalysisRun) TableName() string {
	return "analysis_runs"
}

// BeforeCreate 创建前钩子
func (a *AnalysisRun) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

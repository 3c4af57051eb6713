/*
 * @module service/models/testcase
 * @description 测试用例核心模型，包含用例行、单元格诊断、解析结果等模型
 * @architecture 数据模型层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow CSV解析 -> 本地规则校验 -> AI评审 -> 汇总
 * @rules testId 一经分配不可变更；aiStatus 仅允许编排器修改
 * @dependencies gorm.io/gorm, time
 * @refs service/csv_ingest/, service/rule_engine/, service/ai_review/
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AI评审状态常量
const (
	AIStatusPending      = "PENDING"
	AIStatusAnalyzing    = "ANALYZING"
	AIStatusPass         = "PASS"
	AIStatusNeedsRewrite = "NEEDS_REWRITE"
	AIStatusError        = "ERROR"
)

// TestCase 测试用例行模型，贯穿整个质量管线
type TestCase struct {
	ID             string           `gorm:"type:varchar(50);primaryKey" json:"id,omitempty"`
	FileID         string           `gorm:"type:varchar(50);index" json:"fileId,omitempty"`
	TestID         string           `gorm:"type:varchar(50);not null" json:"testId"`
	Description    string           `gorm:"type:text;not null" json:"description"`
	ExpectedResult string           `gorm:"type:text" json:"expectedResult"`
	Priority       string           `gorm:"type:varchar(50)" json:"priority"`
	Module         string           `gorm:"type:varchar(100)" json:"module"`
	RowIndex       int              `json:"rowIndex"`
	LocalFlags     JSONBStringArray `gorm:"type:jsonb" json:"localFlags"`
	AIStatus       string           `gorm:"type:varchar(20);default:PENDING" json:"aiStatus"`
	Score          *int             `json:"score,omitempty"`
	Comment        string           `gorm:"type:text" json:"comment,omitempty"`
	Confidence     *int             `json:"confidence,omitempty"`

	// 改写建议，仅在触发二次改写后填充
	RewrittenDescription string `gorm:"type:text" json:"rewrittenDescription,omitempty"`
	RewrittenExpected    string `gorm:"type:text" json:"rewrittenExpected,omitempty"`
	ImprovementReason    string `gorm:"type:text" json:"improvementReason,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// TableName 指定表名
func (TestCase) TableName() string {
	return "test_cases"
}

// BeforeCreate 创建前钩子
func (t *TestCase) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// CellIssue 单元格级诊断，仅用于解析预览，不进入后续管线
type CellIssue struct {
	Row     int    `json:"row"`    // rawRows 中的行下标，从0开始
	Column  string `json:"column"` // 原始表头名
	Type    string `json:"type"`   // error 或 warning
	Message string `json:"message"`
}

// 单元格诊断严重级别
const (
	CellIssueError   = "error"
	CellIssueWarning = "warning"
)

// CSVParseResult CSV解析归一化结果
type CSVParseResult struct {
	Rows       []TestCase          `json:"rows"`
	Errors     []string            `json:"errors"`
	Warnings   []string            `json:"warnings"`
	RawHeaders []string            `json:"rawHeaders"`
	RawRows    []map[string]string `json:"rawRows"`
	CellIssues []CellIssue         `json:"cellIssues"`
}

// HasFatalError 判断解析是否存在致命错误（缺少必需列、超出行数上限等）
func (r *CSVParseResult) HasFatalError() bool {
	return len(r.Errors) > 0
}

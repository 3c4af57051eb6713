package csv_ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qareview-service/service/models"
	"qareview-service/service/rule_engine"
)

// 端到端：解析后直接交给规则引擎，覆盖接入与本地校验的衔接
func TestParse与ValidateAll衔接(t *testing.T) {
	parser := NewParser(DefaultConfig())
	engine := rule_engine.NewEngine(rule_engine.DefaultConfig())

	csv := "Test Case ID,Description,Expected Result,Priority\n" +
		"TC001,Verify login succeeds,User sees dashboard,High\n" +
		",works fine,,Low\n"

	result := parser.Parse([]byte(csv))
	require.False(t, result.HasFatalError())
	require.Len(t, result.Rows, 2)

	// 第二行自动编号并产生单元格诊断
	assert.Equal(t, "TC002", result.Rows[1].TestID)
	require.Len(t, result.CellIssues, 2)
	assert.Equal(t, models.CellIssueWarning, result.CellIssues[0].Type)
	assert.Equal(t, "Test Case ID", result.CellIssues[0].Column)
	assert.Equal(t, models.CellIssueError, result.CellIssues[1].Type)
	assert.Equal(t, "Expected Result", result.CellIssues[1].Column)

	validated := engine.ValidateAll(result.Rows)

	assert.Empty(t, []string(validated[0].LocalFlags))
	assert.Equal(t, []string{
		rule_engine.FlagMissingExpectedResult,
		rule_engine.FlagNoActionVerb,
	}, []string(validated[1].LocalFlags))
}

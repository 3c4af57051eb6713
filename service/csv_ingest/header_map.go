/*
 * @module service/csv_ingest/header_map
 * @description 表头同义词映射表，将常见表头拼写归一化为五个规范字段
 * @architecture 分层架构 - 数据接入层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 原始表头 -> 小写去空格 -> 规范字段
 * @rules 未识别的表头仅产生警告，数据保留在 rawRows 中用于预览
 * @dependencies strings
 * @refs parser.go
 */

package csv_ingest

import "strings"

// 规范字段名常量
const (
	FieldTestID         = "testId"
	FieldDescription    = "description"
	FieldExpectedResult = "expectedResult"
	FieldPriority       = "priority"
	FieldModule         = "module"
)

// headerMap 表头同义词 -> 规范字段，含中文环境常见表头
var headerMap = map[string]string{
	"testid":       FieldTestID,
	"test case id": FieldTestID,
	"testcaseid":   FieldTestID,
	"test_case_id": FieldTestID,
	"tc id":        FieldTestID,
	"tcid":         FieldTestID,
	"id":           FieldTestID,
	"test id":      FieldTestID,
	"用例编号":         FieldTestID,
	"用例id":         FieldTestID,
	"编号":           FieldTestID,

	"description":      FieldDescription,
	"desc":             FieldDescription,
	"test description": FieldDescription,
	"test_description": FieldDescription,
	"scenario":         FieldDescription,
	"test scenario":    FieldDescription,
	"steps":            FieldDescription,
	"test steps":       FieldDescription,
	"用例描述":             FieldDescription,
	"描述":               FieldDescription,
	"测试步骤":             FieldDescription,

	"expectedresult":    FieldExpectedResult,
	"expected result":   FieldExpectedResult,
	"expected_result":   FieldExpectedResult,
	"expected":          FieldExpectedResult,
	"expected outcome":  FieldExpectedResult,
	"expected behavior": FieldExpectedResult,
	"预期结果":             FieldExpectedResult,
	"期望结果":             FieldExpectedResult,

	"priority": FieldPriority,
	"prio":     FieldPriority,
	"severity": FieldPriority,
	"优先级":      FieldPriority,

	"module":      FieldModule,
	"module name": FieldModule,
	"feature":     FieldModule,
	"component":   FieldModule,
	"area":        FieldModule,
	"模块":          FieldModule,
	"所属模块":        FieldModule,
	"功能模块":        FieldModule,
}

// mandatoryFields 缺少任一必需列即判定为致命的解析失败
var mandatoryFields = []string{FieldTestID, FieldDescription, FieldExpectedResult, FieldPriority}

// NormalizeHeader 归一化单个表头并返回其映射的规范字段，未识别时第二个返回值为 false
func NormalizeHeader(raw string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	field, ok := headerMap[normalized]
	return field, ok
}

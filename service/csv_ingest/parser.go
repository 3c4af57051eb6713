/*
 * @module service/csv_ingest/parser
 * @description CSV解析归一化器，负责表头映射、行归一化、单元格级诊断和接入上限检查
 * @architecture 分层架构 - 数据接入层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 原始内容 -> 编码归一化 -> 表头映射 -> 必需列校验 -> 行归一化 -> 上限检查
 * @rules 列级缺失为致命错误返回零行；单元格级缺失仅产生诊断不阻断解析
 * @dependencies encoding/csv, qareview-service/service/models
 * @refs header_map.go, decode.go
 */

package csv_ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"qareview-service/service/models"
)

// 接入上限默认值
const (
	DefaultMaxRows     = 500
	DefaultMaxFileSize = 5 * 1024 * 1024
)

// Config 解析器配置
type Config struct {
	MaxRows     int   // 数据行数上限
	MaxFileSize int64 // 文件字节数上限
}

// DefaultConfig 返回默认解析器配置
func DefaultConfig() Config {
	return Config{
		MaxRows:     DefaultMaxRows,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// Parser CSV解析归一化器
type Parser struct {
	config Config
}

// NewParser 创建解析器实例
func NewParser(config Config) *Parser {
	if config.MaxRows <= 0 {
		config.MaxRows = DefaultMaxRows
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = DefaultMaxFileSize
	}
	return &Parser{config: config}
}

// Parse 解析原始CSV内容并返回归一化结果
// 致命错误（缺少必需列、超出上限、内容不可解析）通过 Errors 返回且 Rows 为空
func (p *Parser) Parse(content []byte) *models.CSVParseResult {
	result := &models.CSVParseResult{
		Rows:       []models.TestCase{},
		Errors:     []string{},
		Warnings:   []string{},
		RawHeaders: []string{},
		RawRows:    []map[string]string{},
		CellIssues: []models.CellIssue{},
	}

	if int64(len(content)) > p.config.MaxFileSize {
		result.Errors = append(result.Errors,
			fmt.Sprintf("File size %d bytes exceeds the maximum of %d bytes.", len(content), p.config.MaxFileSize))
		return result
	}

	reader := csv.NewReader(strings.NewReader(string(DecodeContent(content))))
	reader.FieldsPerRecord = -1

	records, err := readAll(reader)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("CSV parsing failed: %v", err))
		return result
	}
	if len(records) == 0 {
		result.Errors = append(result.Errors, "CSV parsing failed: file contains no header row")
		return result
	}

	// 表头归一化
	headers := records[0]
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	result.RawHeaders = headers

	// 列下标 -> 规范字段
	columnField := make(map[int]string)
	// 规范字段 -> 原始表头名，用于单元格诊断定位
	fieldColumn := make(map[string]string)
	for i, raw := range headers {
		field, ok := NormalizeHeader(raw)
		if !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Unrecognized column %q - it will be ignored.", raw))
			continue
		}
		columnField[i] = field
		fieldColumn[field] = raw
	}

	// 必需列校验，缺失任一列即为致命失败
	for _, field := range mandatoryFields {
		if _, ok := fieldColumn[field]; !ok {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Missing mandatory column: %q. Please check your CSV headers.", field))
		}
	}
	if len(result.Errors) > 0 {
		return result
	}

	// 行归一化
	dataRecords := records[1:]
	for rowIndex, record := range dataRecords {
		rawRow := make(map[string]string)
		for i, raw := range headers {
			if i < len(record) {
				rawRow[raw] = record[i]
			} else {
				rawRow[raw] = ""
			}
		}
		result.RawRows = append(result.RawRows, rawRow)

		tc := models.TestCase{
			RowIndex: rowIndex,
			AIStatus: models.AIStatusPending,
		}
		for i := range headers {
			field, ok := columnField[i]
			if !ok {
				continue
			}
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			switch field {
			case FieldTestID:
				tc.TestID = value
			case FieldDescription:
				tc.Description = value
			case FieldExpectedResult:
				tc.ExpectedResult = value
			case FieldPriority:
				tc.Priority = value
			case FieldModule:
				tc.Module = value
			}
		}

		// testId 缺失时自动生成，并同时记录全局警告和单元格诊断
		if tc.TestID == "" {
			tc.TestID = fmt.Sprintf("TC%03d", rowIndex+1)
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Row %d: Missing Test Case ID, auto-generated as %q.", rowIndex+1, tc.TestID))
			result.CellIssues = append(result.CellIssues, models.CellIssue{
				Row:     rowIndex,
				Column:  fieldColumn[FieldTestID],
				Type:    models.CellIssueWarning,
				Message: fmt.Sprintf("Missing Test Case ID, auto-generated as %q", tc.TestID),
			})
		}

		// 必填单元格缺失仅产生诊断，不阻断整体解析
		for _, check := range []struct {
			field string
			value string
		}{
			{FieldDescription, tc.Description},
			{FieldExpectedResult, tc.ExpectedResult},
			{FieldPriority, tc.Priority},
		} {
			field, value := check.field, check.value
			if value == "" {
				result.CellIssues = append(result.CellIssues, models.CellIssue{
					Row:     rowIndex,
					Column:  fieldColumn[field],
					Type:    models.CellIssueError,
					Message: fmt.Sprintf("Required cell %q is empty", field),
				})
			}
		}

		result.Rows = append(result.Rows, tc)
	}

	// 行数上限检查，超限时整体失败而非静默截断
	if len(result.Rows) > p.config.MaxRows {
		result.Errors = append(result.Errors,
			fmt.Sprintf("File contains %d rows. Maximum allowed is %d.", len(result.Rows), p.config.MaxRows))
		result.Rows = []models.TestCase{}
		result.RawRows = []map[string]string{}
		result.CellIssues = []models.CellIssue{}
		return result
	}

	return result
}

// readAll 逐行读取并跳过空行
func readAll(reader *csv.Reader) ([][]string, error) {
	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isEmptyRecord(record) {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

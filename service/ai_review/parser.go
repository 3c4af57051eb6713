/*
 * @module service/ai_review/parser
 * @description 模型输出严格解析，仅接受预期JSON形状，解析失败按传输失败同等处理
 * @architecture 分层架构 - AI评审编排层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 原始文本 -> 直接反序列化 -> results包装回退 -> 形状校验
 * @rules 不做正则提取和形状猜测；不符合预期形状即返回解析错误
 * @dependencies encoding/json, qareview-service/service/models
 * @refs orchestrator.go, summary.go
 */

package ai_review

import (
	"encoding/json"
	"fmt"
	"strings"

	"qareview-service/service/models"
)

// reviewResultsWrapper 部分模型会把数组包装为 {"results": [...]}，属于可接受形状
type reviewResultsWrapper struct {
	Results []models.AIReviewResult `json:"results"`
}

// ParseReviewResults 解析批量评审响应
// 可接受形状：JSON数组，或 {"results": [...]} 包装；其余一律视为解析错误
func ParseReviewResults(raw string) ([]models.AIReviewResult, error) {
	raw = strings.TrimSpace(raw)

	var results []models.AIReviewResult
	if err := json.Unmarshal([]byte(raw), &results); err == nil {
		return validateReviewResults(results)
	}

	var wrapper reviewResultsWrapper
	if err := json.Unmarshal([]byte(raw), &wrapper); err == nil && wrapper.Results != nil {
		return validateReviewResults(wrapper.Results)
	}

	return nil, fmt.Errorf("AI评审响应不符合预期JSON形状")
}

// validateReviewResults 校验结果项的字段有效性
func validateReviewResults(results []models.AIReviewResult) ([]models.AIReviewResult, error) {
	for i, r := range results {
		if r.TestID == "" {
			return nil, fmt.Errorf("评审结果第 %d 项缺少 testId", i)
		}
		if r.Score < 0 || r.Score > 100 {
			return nil, fmt.Errorf("评审结果 %s 的 score 超出 0-100 区间: %d", r.TestID, r.Score)
		}
		if r.Confidence < 0 || r.Confidence > 100 {
			return nil, fmt.Errorf("评审结果 %s 的 confidence 超出 0-100 区间: %d", r.TestID, r.Confidence)
		}
	}
	return results, nil
}

// ParseRewriteResult 解析单条改写响应，要求为JSON对象且携带 testId
func ParseRewriteResult(raw string) (*models.AIRewriteResult, error) {
	var result models.AIRewriteResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &result); err != nil {
		return nil, fmt.Errorf("AI改写响应不符合预期JSON形状: %w", err)
	}
	if result.TestID == "" {
		return nil, fmt.Errorf("AI改写响应缺少 testId")
	}
	return &result, nil
}

// ParseModuleSummary 解析模块汇总响应
func ParseModuleSummary(raw string) (*models.AIModuleSummary, error) {
	var summary models.AIModuleSummary
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &summary); err != nil {
		return nil, fmt.Errorf("AI汇总响应不符合预期JSON形状: %w", err)
	}
	if summary.AutomationReadiness == "" {
		return nil, fmt.Errorf("AI汇总响应缺少 automationReadiness")
	}
	return &summary, nil
}

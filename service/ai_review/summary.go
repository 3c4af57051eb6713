/*
 * @module service/ai_review/summary
 * @description 模块汇总聚合器，单次调用产出整批用例的质量汇总，尽力而为
 * @architecture 分层架构 - AI评审编排层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 评分后的行集合 -> 单次汇总调用 -> AIModuleSummary
 * @rules 汇总失败不影响整体管线，调用方应吞掉错误并视为无汇总
 * @dependencies qareview-service/service/models, context
 * @refs orchestrator.go, prompts.go, parser.go
 */

package ai_review

import (
	"context"
	"fmt"

	"qareview-service/service/models"
)

// Summarize 对评审完成的行集合执行一次模块级质量汇总
// 任何失败（网络、解析）都只返回错误，不产生部分结果
func (o *Orchestrator) Summarize(ctx context.Context, rows []models.TestCase) (*models.AIModuleSummary, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("没有可汇总的用例行")
	}

	raw, err := o.caller.Generate(ctx, o.config.PrimaryModel, SystemPromptModuleSummary, BuildModuleSummaryPrompt(rows))
	if err != nil {
		return nil, fmt.Errorf("汇总调用失败: %w", err)
	}

	return ParseModuleSummary(raw)
}

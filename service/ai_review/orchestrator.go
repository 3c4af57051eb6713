/*
 * @module service/ai_review/orchestrator
 * @description AI评审编排器，负责批次切分、状态机推进、失败降级、限速与低置信度改写升级
 * @architecture 分层架构 - AI评审编排层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow PENDING -> ANALYZING -> PASS / NEEDS_REWRITE / ERROR
 * @rules 单批失败不中止其余批次；批次与改写调用严格串行并带固定间隔；aiStatus 仅由本模块修改
 * @dependencies qareview-service/service/models, context, log/slog
 * @refs client.go, prompts.go, parser.go
 */

package ai_review

import (
	"context"
	"fmt"
	"log/slog"

	"qareview-service/service/models"
)

// Progress 单批完成后的进度通知
type Progress struct {
	BatchIndex    int `json:"batch_index"` // 从1开始
	TotalBatches  int `json:"total_batches"`
	RowsCompleted int `json:"rows_completed"`
}

// ProgressFunc 进度回调，批次完成时同步调用
type ProgressFunc func(Progress)

// AnalyzeOutput 一次分析运行的完整输出
type AnalyzeOutput struct {
	Rows     []models.TestCase        `json:"rows"`     // 回填评审与改写结果后的行集合
	Results  []models.AIReviewResult  `json:"results"`  // 按批次顺序聚合的评审结果
	Rewrites []models.AIRewriteResult `json:"rewrites"` // 低置信度改写结果
}

// Orchestrator AI评审编排器
type Orchestrator struct {
	config Config
	caller Caller
}

// NewOrchestrator 创建编排器实例
func NewOrchestrator(config Config, caller Caller) *Orchestrator {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	return &Orchestrator{config: config, caller: caller}
}

// AnalyzeBatches 对整批用例行执行AI评审
// 所有行在任何网络调用发生前同步进入 ANALYZING 状态；
// 单批失败仅使该批行降级为 ERROR，不影响其余批次；
// 返回错误仅发生在上下文取消时
func (o *Orchestrator) AnalyzeBatches(ctx context.Context, rows []models.TestCase, progress ProgressFunc) (*AnalyzeOutput, error) {
	output := &AnalyzeOutput{
		Rows:     make([]models.TestCase, len(rows)),
		Results:  []models.AIReviewResult{},
		Rewrites: []models.AIRewriteResult{},
	}

	// 整批同步进入 ANALYZING 并清除上一轮评审痕迹
	for i, tc := range rows {
		tc.AIStatus = models.AIStatusAnalyzing
		tc.Score = nil
		tc.Comment = ""
		tc.Confidence = nil
		output.Rows[i] = tc
	}

	batches := chunkRows(output.Rows, o.config.BatchSize)
	rowsCompleted := 0

	for bi, batch := range batches {
		// 批次间主动限速，最后一批之后不再等待
		if bi > 0 {
			if err := wait(ctx, o.config.BatchDelay); err != nil {
				return nil, err
			}
		}

		results := o.reviewBatch(ctx, batch)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		output.Results = append(output.Results, results...)

		rowsCompleted += len(batch)
		if progress != nil {
			progress(Progress{
				BatchIndex:    bi + 1,
				TotalBatches:  len(batches),
				RowsCompleted: rowsCompleted,
			})
		}
	}

	o.mergeResults(output)

	if err := o.escalateRewrites(ctx, output); err != nil {
		return nil, err
	}

	return output, nil
}

// reviewBatch 提交单个批次并解析结果，失败时整批降级为 ERROR
func (o *Orchestrator) reviewBatch(ctx context.Context, batch []models.TestCase) []models.AIReviewResult {
	batchesTotal.Inc()

	userPrompt := BuildBulkReviewPrompt(batch)

	raw, err := o.caller.Generate(ctx, o.config.PrimaryModel, SystemPromptBulkReview, userPrompt)
	if err == nil {
		var results []models.AIReviewResult
		results, err = ParseReviewResults(raw)
		if err == nil {
			return results
		}
	}

	batchFailuresTotal.Inc()
	slog.Error("批次评审失败，整批降级为ERROR", "batch_size", len(batch), "error", err)

	failed := make([]models.AIReviewResult, 0, len(batch))
	for _, tc := range batch {
		failed = append(failed, models.AIReviewResult{
			TestID:     tc.TestID,
			Status:     models.AIStatusError,
			Score:      0,
			Reason:     fmt.Sprintf("AI analysis failed: %v", err),
			Confidence: 0,
		})
	}
	return failed
}

// mergeResults 按 testId 将评审结果回填到行集合
// 无匹配结果的行降级为 ERROR；无匹配行的结果直接丢弃
func (o *Orchestrator) mergeResults(output *AnalyzeOutput) {
	byTestID := make(map[string]models.AIReviewResult, len(output.Results))
	for _, r := range output.Results {
		if _, exists := byTestID[r.TestID]; !exists {
			byTestID[r.TestID] = r
		}
	}

	for i := range output.Rows {
		result, ok := byTestID[output.Rows[i].TestID]
		if !ok {
			output.Rows[i].AIStatus = models.AIStatusError
			score := 0
			output.Rows[i].Score = &score
			output.Rows[i].Comment = "AI analysis failed: no result returned for this test case"
			continue
		}

		output.Rows[i].AIStatus = normalizeStatus(result.Status)
		score := result.Score
		confidence := result.Confidence
		output.Rows[i].Score = &score
		output.Rows[i].Comment = result.Reason
		output.Rows[i].Confidence = &confidence
	}
}

// escalateRewrites 对低置信度的非ERROR结果串行触发改写，失败记录后跳过
func (o *Orchestrator) escalateRewrites(ctx context.Context, output *AnalyzeOutput) error {
	rowIndex := make(map[string]int, len(output.Rows))
	for i, tc := range output.Rows {
		rowIndex[tc.TestID] = i
	}

	first := true
	for _, result := range output.Results {
		if result.Status == models.AIStatusError || result.Confidence >= o.config.ConfidenceThreshold {
			continue
		}

		idx, ok := rowIndex[result.TestID]
		if !ok {
			continue
		}

		// 改写调用间主动限速
		if !first {
			if err := wait(ctx, o.config.RewriteDelay); err != nil {
				return err
			}
		}
		first = false

		rewritesTotal.Inc()
		rewrite, err := o.rewriteOne(ctx, output.Rows[idx])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rewriteFailuresTotal.Inc()
			slog.Error("改写调用失败，跳过该行", "testId", result.TestID, "error", err)
			continue
		}

		output.Rewrites = append(output.Rewrites, *rewrite)
		output.Rows[idx].RewrittenDescription = rewrite.RewrittenDescription
		output.Rows[idx].RewrittenExpected = rewrite.RewrittenExpected
		output.Rows[idx].ImprovementReason = rewrite.ImprovementReason
	}

	return nil
}

// rewriteOne 调用回退模型改写单条用例
func (o *Orchestrator) rewriteOne(ctx context.Context, tc models.TestCase) (*models.AIRewriteResult, error) {
	raw, err := o.caller.Generate(ctx, o.config.FallbackModel, SystemPromptRewrite, BuildRewritePrompt(tc))
	if err != nil {
		return nil, err
	}
	return ParseRewriteResult(raw)
}

// normalizeStatus 将评审结果状态归一化为终态
// PASS 和 ERROR 保持不变，其余一律映射为 NEEDS_REWRITE
func normalizeStatus(status string) string {
	switch status {
	case models.AIStatusPass, models.AIStatusError:
		return status
	default:
		return models.AIStatusNeedsRewrite
	}
}

// chunkRows 将行集合切分为固定大小的批次
func chunkRows(rows []models.TestCase, size int) [][]models.TestCase {
	var batches [][]models.TestCase
	for i := 0; i < len(rows); i += size {
		end := i + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[i:end])
	}
	return batches
}

/*
 * @module service/ai_review/prompts
 * @description 评审、改写、汇总三类提示词构建，评分细则作为可插拔策略集中在本文件
 * @architecture 分层架构 - AI评审编排层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 用例行 -> 精简字段 -> JSON嵌入用户提示词
 * @rules 编排器只消费本文件产出的提示词字符串，不感知评分细则内容
 * @dependencies encoding/json, qareview-service/service/models
 * @refs orchestrator.go, summary.go
 */

package ai_review

import (
	"encoding/json"
	"fmt"

	"qareview-service/service/models"
)

// SystemPromptBulkReview 批量评审系统提示词，采用加权评分细则
const SystemPromptBulkReview = `You are a Senior QA Lead and Product QA Reviewer performing strict professional evaluation of software test cases.

Your task is to evaluate BOTH:
1. Business Logic Correctness
2. Test Case Writing Quality

You must act like an experienced QA Lead reviewing for clarity, automation readiness, and logical validity.

SCORING MUST BE STRICT BUT FAIR. Do not inflate scores and do not be overly harsh for minor wording issues.

WEIGHT DISTRIBUTION:
- Business Logic Correctness: 40%
- SOP Structure Compliance: 35%
- Expected Result Clarity & Measurability: 15%
- Language Precision & Verb Usage: 10%

BUSINESS LOGIC VALIDATION:
- Ensure expected result logically matches the scenario.
- Detect contradictions, impossible flows, or missing actions.
- Valid logic must not be heavily penalized even if wording is imperfect.
- Incorrect or incomplete logic causes major score reduction.

SOP STRUCTURE VALIDATION:
- Prefer one scenario per test case.
- Multi-scenario is a medium penalty, not automatic failure.
- Clear module and priority mapping expected.
- Penalize ambiguity or missing validation steps.

EXPECTED RESULT VALIDATION:
- Must be observable and binary (pass/fail).
- Avoid assumptions and subjective interpretation.
- Penalize vague or non-measurable outcomes.

LANGUAGE VALIDATION:
- Prefer strong action verbs (Verify, Validate, Confirm, Navigate, Click).
- Penalize vague or non-measurable language.
- Examples of vague phrases include "works fine", "properly", "as expected", or "check".
- These examples are illustrative, not exhaustive.
- Do NOT penalize wording if the expected result remains objectively measurable.

PRIORITY AWARENESS:
- High priority cases require stricter clarity and determinism.
- Low priority cases may tolerate minor wording imperfections but not logical errors.

SCORING GUIDELINES:
- 90-100: Production-ready, clear logic and structure
- 75-89: Minor rewrite recommended
- 60-74: Noticeable clarity or structure issues
- 40-59: Confusing structure or partial logic problem
- Below 40: Major logic flaw or highly ambiguous

COMMENT STYLE:
- Be concise, constructive, and professional.
- Clearly indicate issue type:
  - Business Logic Issue
  - SOP Structure Issue
  - Expected Result Issue
  - Language Issue
  - Multiple Issues

IMPORTANT RULES:
- Do not behave like a grammar checker.
- Do not rely on keyword matching alone.
- Evaluate intent, measurability, and logical validity.
- Avoid emotional or exaggerated criticism.
- Maintain deterministic and consistent scoring.

Return ONLY valid JSON. No markdown, no commentary, no formatting outside the JSON array.`

// SystemPromptRewrite 改写系统提示词
const SystemPromptRewrite = `You are a Senior QA Automation Lead rewriting unclear test cases to SOP-compliant form.

Requirements for rewritten test cases:
- One scenario only per test case
- Strong, specific action verbs
- Measurable, deterministic expected results
- No vague language
- Automation-ready

Return ONLY valid JSON. No markdown, no commentary.`

// SystemPromptModuleSummary 模块汇总系统提示词
const SystemPromptModuleSummary = `You are a QA Lead generating a concise module quality summary.

Return ONLY valid JSON. No markdown, no commentary.`

// BuildBulkReviewPrompt 构建批量评审用户提示词
func BuildBulkReviewPrompt(testCases []models.TestCase) string {
	type simplified struct {
		TestID         string `json:"testId"`
		Description    string `json:"description"`
		ExpectedResult string `json:"expectedResult"`
		Priority       string `json:"priority"`
		Module         string `json:"module"`
	}

	rows := make([]simplified, 0, len(testCases))
	for _, tc := range testCases {
		rows = append(rows, simplified{
			TestID:         tc.TestID,
			Description:    tc.Description,
			ExpectedResult: tc.ExpectedResult,
			Priority:       tc.Priority,
			Module:         tc.Module,
		})
	}

	payload, _ := json.MarshalIndent(rows, "", "  ")

	return fmt.Sprintf(`Review the following test cases and return a JSON array. For each test case, provide:
- testId: the test case ID
- status: "PASS" or "NEEDS_REWRITE"
- score: 0-100 quality score
- reason: one-line explanation
- confidence: 0-100 confidence in your assessment

Test Cases:
%s`, payload)
}

// BuildRewritePrompt 构建单条用例的改写用户提示词
func BuildRewritePrompt(tc models.TestCase) string {
	return fmt.Sprintf(`Rewrite the following test case to be SOP-compliant. Return a JSON object with:
- testId: %q
- rewrittenDescription: improved description
- rewrittenExpected: improved expected result
- improvementReason: one sentence explaining what was improved

Test Case:
- Test ID: %s
- Description: %s
- Expected Result: %s
- Priority: %s
- Module: %s`, tc.TestID, tc.TestID, tc.Description, tc.ExpectedResult, tc.Priority, tc.Module)
}

// BuildModuleSummaryPrompt 构建模块汇总用户提示词
func BuildModuleSummaryPrompt(testCases []models.TestCase) string {
	type scored struct {
		TestID string `json:"testId"`
		Module string `json:"module"`
		Score  *int   `json:"score"`
		Status string `json:"status"`
	}

	rows := make([]scored, 0, len(testCases))
	for _, tc := range testCases {
		rows = append(rows, scored{
			TestID: tc.TestID,
			Module: tc.Module,
			Score:  tc.Score,
			Status: tc.AIStatus,
		})
	}

	payload, _ := json.MarshalIndent(rows, "", "  ")

	return fmt.Sprintf(`Analyze the following test case results and return a JSON object with:
- averageScore: average quality score across all test cases
- rewritePercentage: percentage of test cases that need rewriting
- automationReadiness: "High", "Medium", or "Low"
- mainIssues: array of top 3-5 recurring issues

Test Case Results:
%s`, payload)
}

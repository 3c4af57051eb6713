/*
 * @module service/rule_engine/rule_engine
 * @description 本地规则引擎，对归一化后的用例行执行确定性校验并标注 localFlags
 * @architecture 分层架构 - 规则引擎层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 行内规则检查 -> 脚本规则检查 -> 跨行近重复检测 -> 标注输出
 * @rules 纯同步无IO；每次调用重新推导 localFlags，幂等不累积
 * @dependencies regexp, qareview-service/service/models
 * @refs similarity.go, script_rule.go
 */

package rule_engine

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"qareview-service/service/models"
)

// 规则违规提示文本
const (
	FlagMissingExpectedResult = "Missing expected result"
	FlagNoActionVerb          = "No action verb found in description"
)

// DefaultDuplicateThreshold 近重复判定默认阈值
const DefaultDuplicateThreshold = 0.85

// actionVerbs 动作动词固定词表，描述中缺少任一整词匹配即判定违规
var actionVerbs = []string{
	"verify", "validate", "confirm", "open", "click", "navigate",
	"install", "login", "select", "scroll", "enter", "check",
	"ensure", "tap", "submit", "drag", "upload", "download",
	"type", "press",
}

var actionVerbPattern = regexp.MustCompile(`\b(` + strings.Join(actionVerbs, "|") + `)\b`)

// Config 规则引擎配置
type Config struct {
	DuplicateThreshold float64 // 近重复相似度阈值
}

// DefaultConfig 返回默认规则引擎配置
func DefaultConfig() Config {
	return Config{DuplicateThreshold: DefaultDuplicateThreshold}
}

// Engine 本地规则引擎
type Engine struct {
	config  Config
	scripts []*ScriptRule
}

// NewEngine 创建规则引擎实例
func NewEngine(config Config) *Engine {
	if config.DuplicateThreshold <= 0 || config.DuplicateThreshold > 1 {
		config.DuplicateThreshold = DefaultDuplicateThreshold
	}
	return &Engine{config: config}
}

// AddScriptRule 注册一条用户自定义脚本规则
func (e *Engine) AddScriptRule(name, script string) error {
	rule, err := compileScriptRule(name, script)
	if err != nil {
		return fmt.Errorf("脚本规则 %s 编译失败: %w", name, err)
	}
	e.scripts = append(e.scripts, rule)
	return nil
}

// ValidateAll 对全部用例行执行规则校验并返回标注后的行集合
// 每次调用从零重新推导 localFlags，重复调用结果稳定
func (e *Engine) ValidateAll(rows []models.TestCase) []models.TestCase {
	duplicates := e.detectDuplicates(rows)

	validated := make([]models.TestCase, len(rows))
	for i, tc := range rows {
		flags := e.validateRow(tc)

		if similar := duplicates[tc.TestID]; len(similar) > 0 {
			flags = append(flags, "Similar to: "+strings.Join(similar, ", "))
		}

		tc.LocalFlags = flags
		validated[i] = tc
	}
	return validated
}

// validateRow 行内规则检查，按固定顺序输出违规提示
func (e *Engine) validateRow(tc models.TestCase) []string {
	flags := []string{}

	if strings.TrimSpace(tc.ExpectedResult) == "" {
		flags = append(flags, FlagMissingExpectedResult)
	}

	if !actionVerbPattern.MatchString(strings.ToLower(tc.Description)) {
		flags = append(flags, FlagNoActionVerb)
	}

	for _, rule := range e.scripts {
		flag, err := rule.Check(tc)
		if err != nil {
			slog.Warn("脚本规则执行失败", "rule", rule.Name(), "testId", tc.TestID, "error", err)
			continue
		}
		if flag != "" {
			flags = append(flags, flag)
		}
	}

	return flags
}

// detectDuplicates 跨行近重复检测，返回 testId -> 相似 testId 列表的对称映射
// O(n²) 两两比较，仅在 ≤500 行的接入上限下可接受；
// 若上限提高需改为 shingling + 分桶候选的索引策略
func (e *Engine) detectDuplicates(rows []models.TestCase) map[string][]string {
	duplicates := make(map[string][]string)

	for i := 0; i < len(rows); i++ {
		for j := i + 1; j < len(rows); j++ {
			similarity := CompareTwoStrings(
				strings.ToLower(rows[i].Description),
				strings.ToLower(rows[j].Description),
			)
			if similarity >= e.config.DuplicateThreshold {
				duplicates[rows[i].TestID] = append(duplicates[rows[i].TestID], rows[j].TestID)
				duplicates[rows[j].TestID] = append(duplicates[rows[j].TestID], rows[i].TestID)
			}
		}
	}

	for id := range duplicates {
		sort.Strings(duplicates[id])
	}
	return duplicates
}

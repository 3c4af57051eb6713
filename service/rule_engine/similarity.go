/*
 * @module service/rule_engine/similarity
 * @description 字符串相似度计算，基于二元组的 Sørensen-Dice 系数，用于近重复用例检测
 * @architecture 分层架构 - 规则引擎层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 去空格 -> 构建二元组多重集 -> 交集计数 -> 归一化系数
 * @rules 返回值在 [0,1] 区间；完全相同为1，无公共二元组为0
 * @dependencies strings
 * @refs rule_engine.go
 */

package rule_engine

import "strings"

// CompareTwoStrings 计算两个字符串的 Dice 相似度系数
// 比较前去除空格，按 rune 构建二元组多重集
func CompareTwoStrings(first, second string) float64 {
	first = strings.ReplaceAll(first, " ", "")
	second = strings.ReplaceAll(second, " ", "")

	if first == second {
		return 1
	}

	a := []rune(first)
	b := []rune(second)
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigrams := make(map[string]int)
	for i := 0; i < len(a)-1; i++ {
		bigrams[string(a[i:i+2])]++
	}

	intersection := 0
	for i := 0; i < len(b)-1; i++ {
		bigram := string(b[i : i+2])
		if bigrams[bigram] > 0 {
			bigrams[bigram]--
			intersection++
		}
	}

	return 2.0 * float64(intersection) / float64(len(a)+len(b)-2)
}

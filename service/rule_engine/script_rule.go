/*
 * @module service/rule_engine/script_rule
 * @description 用户自定义脚本规则，基于yaegi解释器编译执行，带编译缓存
 * @architecture 分层架构 - 规则引擎层
 * @documentReference ai_docs/testcase_pipeline_req.md
 * @stateFlow 脚本提交 -> 哈希查缓存 -> 编译 -> 按行执行
 * @rules 脚本必须返回 (string, error)，返回空字符串表示规则通过
 * @dependencies github.com/traefik/yaegi/interp, github.com/traefik/yaegi/stdlib
 * @refs rule_engine.go
 */

package rule_engine

import (
	"crypto/sha1"
	"fmt"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"qareview-service/service/models"
)

// ScriptRule 编译后的脚本规则
type ScriptRule struct {
	name string
	fn   func(map[string]interface{}) (string, error)
}

// Name 返回规则名称
func (r *ScriptRule) Name() string {
	return r.name
}

// Check 对单行用例执行脚本规则，返回违规提示文本，空串表示通过
func (r *ScriptRule) Check(tc models.TestCase) (string, error) {
	return r.fn(map[string]interface{}{
		"testId":         tc.TestID,
		"description":    tc.Description,
		"expectedResult": tc.ExpectedResult,
		"priority":       tc.Priority,
		"module":         tc.Module,
	})
}

var (
	scriptCacheMu sync.RWMutex
	scriptCache   = make(map[string]func(map[string]interface{}) (string, error))
)

// compileScriptRule 编译脚本为可执行规则，相同脚本内容命中缓存
func compileScriptRule(name, script string) (*ScriptRule, error) {
	hash := fmt.Sprintf("%x", sha1.Sum([]byte(script)))

	scriptCacheMu.RLock()
	fn, ok := scriptCache[hash]
	scriptCacheMu.RUnlock()

	if !ok {
		var err error
		fn, err = compile(script)
		if err != nil {
			return nil, err
		}

		scriptCacheMu.Lock()
		scriptCache[hash] = fn
		scriptCacheMu.Unlock()
	}

	return &ScriptRule{name: name, fn: fn}, nil
}

// compile 将脚本体包装为 Run 函数并通过yaegi编译
func compile(script string) (func(map[string]interface{}) (string, error), error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("加载标准库失败: %w", err)
	}

	// 包装脚本：要求脚本体以 return 语句结束
	wrapped := fmt.Sprintf(`
package main

import (
	"fmt"
	"strings"
)

var _ = fmt.Sprintf
var _ = strings.TrimSpace

// 脚本入口，tc 为单行用例的字段映射
func Run(tc map[string]interface{}) (string, error) {
%s
}
`, script)

	if _, err := i.Eval(wrapped); err != nil {
		return nil, fmt.Errorf("脚本编译失败: %w", err)
	}

	v, err := i.Eval("Run")
	if err != nil {
		return nil, fmt.Errorf("脚本缺少 Run 函数: %w", err)
	}

	fn, ok := v.Interface().(func(map[string]interface{}) (string, error))
	if !ok {
		return nil, fmt.Errorf("Run 函数签名必须是 func(map[string]interface{}) (string, error)")
	}

	return fn, nil
}

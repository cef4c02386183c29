// Package dsl 提供基于 CEL (Common Expression Language) 的规则表达式求值。
//
// 重排引擎用它支撑可配置的业务规则：表达式对 item / label / rctx 三个变量
// 求布尔值，命中才应用规则乘数。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：label.recall_source == "hot" / item.category != ""
//   - 数值：item.score > 0.7 / item.rating_number < 5
//   - 逻辑：item.category == "Electronics" && item.score > 0.8
//   - 包含：label.recall_source.contains("hot")
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/shoprec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
	celEnvErr  error
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Expr 是一条编译好的规则表达式。编译一次，可并发求值多次。
type Expr struct {
	raw string
	prg cel.Program
}

// Compile 编译 CEL 表达式。空表达式合法：恒为 true。
func Compile(expr string) (*Expr, error) {
	if expr == "" {
		return &Expr{raw: expr}, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Expr{raw: expr, prg: prg}, nil
}

// String 返回表达式原文。
func (e *Expr) String() string { return e.raw }

// Evaluate 对一个 item + 请求上下文求值，返回布尔结果。
// 对不存在的 key，CEL 会返回错误；表达式应使用 label.key != null 检查存在性。
func (e *Expr) Evaluate(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if e.prg == nil {
		return true, nil
	}

	out, _, err := e.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", e.raw, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q must return boolean, got %T", e.raw, out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据。
// item 展开为 map：id / score / category / rating_number + Meta 的所有键。
func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	itemMap := map[string]any{}
	labelMap := map[string]any{}
	rctxMap := map[string]any{}

	if item != nil {
		for k, v := range item.Meta {
			itemMap[k] = v
		}
		itemMap["id"] = item.ID
		itemMap["score"] = item.Score
		itemMap["category"] = item.Category()
		if n, ok := item.RatingCount(); ok {
			itemMap["rating_number"] = n
		}
		for k, lbl := range item.Labels {
			labelMap[k] = lbl.Value
		}
	}
	if rctx != nil {
		rctxMap["user_id"] = rctx.UserID
		rctxMap["scene"] = rctx.Scene
		for k, v := range rctx.Params {
			rctxMap[k] = v
		}
	}

	return map[string]any{
		"item":  itemMap,
		"label": labelMap,
		"rctx":  rctxMap,
	}
}

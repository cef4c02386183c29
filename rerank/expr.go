package rerank

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/dsl"
	"github.com/rushteam/shoprec/pkg/utils"
)

// ExprRule 是基于 CEL 表达式的可配置调分规则：
// 表达式命中的物品分数乘以 Multiplier，并写入解释轨迹。
//
// 用于内置四条规则覆盖不到的临时运营场景
// （如 "item.category == 'Electronics' && item.score > 0.8" 降权某类目），
// 通常放在 rerank.rules 之前。
type ExprRule struct {
	RuleName   string
	When       *dsl.Expr
	Multiplier float64
}

// NewExprRule 编译表达式并构造规则节点。
func NewExprRule(name, expr string, multiplier float64) (*ExprRule, error) {
	compiled, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprRule{RuleName: name, When: compiled, Multiplier: multiplier}, nil
}

func (n *ExprRule) Name() string        { return "rerank.expr" }
func (n *ExprRule) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *ExprRule) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.When == nil || len(items) == 0 {
		return items, nil
	}

	for _, it := range items {
		ok, err := n.When.Evaluate(it, rctx)
		if err != nil {
			// 表达式求值失败只跳过该物品，不影响整条链路。
			continue
		}
		if !ok {
			continue
		}
		it.Score *= n.Multiplier
		it.PutLabel("applied_rules", utils.Label{Value: n.RuleName, Source: "rerank"})
	}

	sortByScore(items)
	return items, nil
}

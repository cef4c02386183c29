package rerank

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
)

// TopNNode 截断最终结果条数。
// 放在链路末尾兜底：即使上游节点没有截断，出口条数也不失控。
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string        { return "rerank.topn" }
func (n *TopNNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if rctx != nil && rctx.Count > 0 {
		limit = rctx.Count
	}
	if limit <= 0 {
		limit = DefaultConfig().TopN
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

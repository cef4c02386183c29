// Package config 把内置 Node 组装成配置驱动的工厂：
// YAML/JSON 里的 node type + config，映射到具体 Node 实例。
//
// 内置 Node 依赖运行时资源（模型工件、上下文存储），工厂通过闭包
// 持有这些资源，配置只负责拓扑与参数。
package config

import (
	"fmt"
	"time"

	"github.com/rushteam/shoprec/artifact"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/conv"
	"github.com/rushteam/shoprec/rank"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/rerank"
)

// DefaultFactory 返回一个包含所有内置 Node 的默认工厂。
// contextStore 可为 nil（重排的上下文规则整体跳过）。
func DefaultFactory(bundle *artifact.Bundle, contextStore core.ContextStore) *pipeline.NodeFactory {
	factory := pipeline.NewNodeFactory()

	// Recall Nodes
	factory.Register("recall.fanout", func(cfg map[string]any) (pipeline.Node, error) {
		return buildFanoutNode(bundle, cfg)
	})

	// Rank Nodes
	factory.Register("rank.lr", func(cfg map[string]any) (pipeline.Node, error) {
		return buildLRNode(bundle, cfg)
	})

	// ReRank Nodes
	factory.Register("rerank.rules", func(cfg map[string]any) (pipeline.Node, error) {
		return buildRulesNode(contextStore, cfg)
	})
	factory.Register("rerank.expr", func(cfg map[string]any) (pipeline.Node, error) {
		return buildExprNode(cfg)
	})
	factory.Register("rerank.topn", func(cfg map[string]any) (pipeline.Node, error) {
		return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
	})

	return factory
}

// buildFanoutNode 构建召回扇出节点。
// config.sources 列出启用的召回源（缺省全部三路）。
func buildFanoutNode(bundle *artifact.Bundle, cfg map[string]any) (pipeline.Node, error) {
	names := conv.SliceAnyToString(cfg["sources"])
	if len(names) == 0 {
		names = []string{"mf", "hot", "content"}
	}

	sources := make([]recall.Source, 0, len(names))
	for _, name := range names {
		switch name {
		case "mf":
			sources = append(sources, &recall.MF{
				Bundle: bundle,
				TopK:   conv.ConfigGetInt(cfg, "mf_top_k", recall.DefaultTopKMF),
			})
		case "hot":
			sources = append(sources, &recall.Hot{
				Bundle:      bundle,
				TopK:        conv.ConfigGetInt(cfg, "hot_top_k", recall.DefaultTopKHot),
				ShuffleTail: conv.ConfigGet[bool](cfg, "hot_shuffle_tail", false),
			})
		case "content":
			sources = append(sources, &recall.Content{
				Bundle:       bundle,
				TopK:         conv.ConfigGetInt(cfg, "content_top_k", recall.DefaultTopKContent),
				MaxReference: conv.ConfigGetInt(cfg, "max_reference", recall.DefaultMaxReference),
			})
		default:
			return nil, fmt.Errorf("unknown recall source: %s", name)
		}
	}

	fanout := &recall.Fanout{Sources: sources}
	if ms := conv.ConfigGetInt(cfg, "timeout_ms", 0); ms > 0 {
		fanout.Timeout = time.Duration(ms) * time.Millisecond
	}
	return fanout, nil
}

func buildLRNode(bundle *artifact.Bundle, cfg map[string]any) (pipeline.Node, error) {
	m := bundle.Model()
	if m == nil {
		return nil, fmt.Errorf("rank.lr: bundle has no ranking model")
	}
	return &rank.Node{
		Bundle:       bundle,
		Model:        m,
		MaxReference: conv.ConfigGetInt(cfg, "max_reference", recall.DefaultMaxReference),
	}, nil
}

func buildRulesNode(contextStore core.ContextStore, cfg map[string]any) (pipeline.Node, error) {
	rc := rerank.DefaultConfig()
	rc.TopN = conv.ConfigGetInt(cfg, "top_n", rc.TopN)
	rc.IntentRate = conv.ConfigGetFloat(cfg, "intent_rate", rc.IntentRate)
	rc.IntentCap = conv.ConfigGetFloat(cfg, "intent_cap", rc.IntentCap)
	rc.RecencyPenalty = conv.ConfigGetFloat(cfg, "recency_penalty", rc.RecencyPenalty)
	rc.DiversityShare = conv.ConfigGetFloat(cfg, "diversity_share", rc.DiversityShare)
	rc.DiversityPenalty = conv.ConfigGetFloat(cfg, "diversity_penalty", rc.DiversityPenalty)
	rc.PopularityFloor = conv.ConfigGet[bool](cfg, "popularity_floor", rc.PopularityFloor)
	rc.MinRatingCount = conv.ConfigGetInt(cfg, "min_rating_count", rc.MinRatingCount)
	rc.FloorPenalty = conv.ConfigGetFloat(cfg, "floor_penalty", rc.FloorPenalty)
	if ms := conv.ConfigGetInt(cfg, "context_timeout_ms", 0); ms > 0 {
		rc.ContextTimeout = time.Duration(ms) * time.Millisecond
	}
	return &rerank.RuleNode{Context: contextStore, Config: rc}, nil
}

func buildExprNode(cfg map[string]any) (pipeline.Node, error) {
	name := conv.ConfigGet[string](cfg, "name", "expr")
	expr := conv.ConfigGet[string](cfg, "when", "")
	mult := conv.ConfigGetFloat(cfg, "multiplier", 1.0)
	return rerank.NewExprRule(name, expr, mult)
}

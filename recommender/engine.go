// Package recommender 是三段式推荐链路的门面：
// 多路召回 → 模型排序 → 规则重排，一次调用拿到带解释轨迹的结果。
//
// Engine 持有加载后的模型工件（只读）与可选的行为上下文存储；
// 单次请求同步单遍走完，个性化信号缺失时逐级降级
// （未知用户 → 热门召回兜底），绝不因冷启动返回空结果或错误。
package recommender

import (
	"context"
	"time"

	"github.com/rushteam/shoprec/artifact"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/rank"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/rerank"
)

// Request 是一次推荐请求。
type Request struct {
	// UserID 为空或未知时走冷启动路径（热门兜底）。
	UserID string

	// Count 是期望条数，<=0 时用默认 20。
	Count int

	// Seed 显式提供时热门召回对尾部做确定性打散；nil 则完全确定。
	Seed *int64

	// ReferenceItems 是内容召回的参考物品（如当前浏览的商品）。
	ReferenceItems []string
}

// Recommendation 是单条推荐结果。
type Recommendation struct {
	ItemID string `json:"item_id"`

	// RankScore 是排序模型的原始概率分。
	RankScore float64 `json:"rank_score"`

	// Score 是重排调整后的最终分。
	Score float64 `json:"score"`

	// Position 是最终位次（从 1 开始）。
	Position int `json:"position"`

	// AppliedRules 是命中的重排规则名，按应用顺序排列；空表示未调整。
	AppliedRules []string `json:"applied_rules,omitempty"`
}

// Options 是 Engine 的可选配置。
type Options struct {
	// Stats 替换排序的统计信号源（如 feast.StatsProvider）；nil 用工件表。
	Stats rank.StatsProvider

	// Rerank 覆盖重排配置；零值用 rerank.DefaultConfig()。
	Rerank rerank.Config

	// RecallTimeout 是召回扇出的每路超时。
	RecallTimeout time.Duration
}

// Engine 是推荐链路门面。并发安全：工件只读，链路无共享可变状态。
type Engine struct {
	bundle *artifact.Bundle
	pipe   *pipeline.Pipeline
}

// New 用默认链路构建 Engine：
// recall.fanout(mf + hot + content) → rank.lr → rerank.rules。
// contextStore 可为 nil。
func New(bundle *artifact.Bundle, contextStore core.ContextStore, opts ...Options) *Engine {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}

	rc := o.Rerank
	if rc == (rerank.Config{}) {
		rc = rerank.DefaultConfig()
	}

	nodes := []pipeline.Node{
		&recall.Fanout{
			Sources: []recall.Source{
				&recall.MF{Bundle: bundle},
				&recall.Hot{Bundle: bundle, ShuffleTail: true},
				&recall.Content{Bundle: bundle},
			},
			Timeout: o.RecallTimeout,
		},
		&rank.Node{Bundle: bundle, Model: bundle.Model(), Stats: o.Stats},
		&rerank.RuleNode{Context: contextStore, Config: rc},
	}
	return &Engine{bundle: bundle, pipe: &pipeline.Pipeline{Nodes: nodes}}
}

// NewWithPipeline 用配置驱动组装好的链路构建 Engine。
func NewWithPipeline(bundle *artifact.Bundle, pipe *pipeline.Pipeline) *Engine {
	return &Engine{bundle: bundle, pipe: pipe}
}

// Recommend 执行一次推荐。
// 返回的错误只可能来自排序模型等硬故障；召回源失败、上下文不可用
// 都在链路内部降级，不会让请求失败。
func (e *Engine) Recommend(ctx context.Context, req Request) ([]Recommendation, error) {
	count := req.Count
	if count <= 0 {
		count = rerank.DefaultConfig().TopN
	}

	rctx := &core.RecommendContext{
		UserID:         req.UserID,
		Count:          count,
		Seed:           req.Seed,
		ReferenceItems: req.ReferenceItems,
	}

	items, err := e.pipe.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}

	out := make([]Recommendation, len(items))
	for i, it := range items {
		rec := Recommendation{
			ItemID:    it.ID,
			RankScore: it.RankScore,
			Score:     it.Score,
			Position:  i + 1,
		}
		if lbl, ok := it.Labels["applied_rules"]; ok {
			rec.AppliedRules = lbl.Values()
		}
		out[i] = rec
	}
	return out, nil
}

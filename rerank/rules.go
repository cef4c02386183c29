// Package rerank 实现确定性的规则重排：一条有限的、顺序固定的乘法调分
// 规则链（意图加权 → 近览降权 → 多样性 → 热度下限），不依赖任何模型。
//
// 规则只调分、只重排，绝不删除物品（召回侧多样性被完整保留）；
// 每条命中的规则把规则名追加进物品的解释轨迹（applied_rules）。
//
// 同一物品多条规则命中时按固定顺序做纯乘法叠加；这是确认过的契约，
// 不是遗漏。
package rerank

import (
	"context"
	"sort"
	"time"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
)

// 规则名即解释轨迹中的条目，对外可见，保持稳定。
const (
	RuleIntentBoost      = "intent_boost"
	RuleRecencyPenalty   = "recency_penalty"
	RuleDiversityPenalty = "diversity_penalty"
	RulePopularityFloor  = "popularity_floor"
)

// Config 是重排引擎的显式配置，构造时传入（不存在任何包级调试开关）。
type Config struct {
	// TopN 是最终返回条数，同时定义多样性规则检查的窗口。
	TopN int

	// IntentRate / IntentCap：类目命中短期意图时 score *= 1 + min(cap, rate*count)。
	IntentRate float64
	IntentCap  float64

	// RecencyPenalty：物品出现在最近浏览列表时的乘数。
	RecencyPenalty float64

	// DiversityShare / DiversityPenalty：TopN 窗口内单一类目占比超过
	// share 时，对该类目物品施加的乘数。
	DiversityShare   float64
	DiversityPenalty float64

	// PopularityFloor 开关（可选规则）与评分条数阈值。
	PopularityFloor bool
	MinRatingCount  int
	FloorPenalty    float64

	// ContextTimeout 是上下文读取的超时；超时按空上下文处理，不重试不阻塞。
	ContextTimeout time.Duration
}

// DefaultConfig 返回线上默认配置。
func DefaultConfig() Config {
	return Config{
		TopN:             20,
		IntentRate:       0.05,
		IntentCap:        0.2,
		RecencyPenalty:   0.7,
		DiversityShare:   0.4,
		DiversityPenalty: 0.85,
		PopularityFloor:  true,
		MinRatingCount:   5,
		FloorPenalty:     0.9,
		ContextTimeout:   50 * time.Millisecond,
	}
}

// RuleNode 是规则重排 Node。
//
// 上下文存储通过接口显式注入；读失败、超时、为空都按"无个性化信号"
// 处理：依赖上下文的规则静默跳过，请求绝不因上下文不可用而失败。
type RuleNode struct {
	Context core.ContextStore // 可为 nil（上下文完全缺席）
	Config  Config
}

func (n *RuleNode) Name() string        { return "rerank.rules" }
func (n *RuleNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *RuleNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	cfg := n.Config
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultConfig().TopN
	}
	// 请求指定条数时覆盖 TopN（窗口随之一致）。
	if rctx != nil && rctx.Count > 0 {
		cfg.TopN = rctx.Count
	}

	recentItems, recentCats := n.loadContext(ctx, rctx)
	recentSet := make(map[string]struct{}, len(recentItems))
	for _, id := range recentItems {
		recentSet[id] = struct{}{}
	}

	// 规则 1/2/4：逐物品乘法调分，固定顺序。
	for _, it := range items {
		adjusted := it.RankScore

		// 1. 短期意图加权：最多 +20%。
		if cat := it.Category(); cat != "" {
			if count, ok := recentCats[cat]; ok && count > 0 {
				boost := cfg.IntentRate * float64(count)
				if boost > cfg.IntentCap {
					boost = cfg.IntentCap
				}
				adjusted *= 1 + boost
				n.applied(it, RuleIntentBoost)
			}
		}

		// 2. 近览降权：刚看过的东西别急着再推。
		if _, ok := recentSet[it.ID]; ok {
			adjusted *= cfg.RecencyPenalty
			n.applied(it, RuleRecencyPenalty)
		}

		// 4. 热度下限（可选）：评分条数过少的物品轻微降权。
		if cfg.PopularityFloor {
			if cnt, ok := it.RatingCount(); ok && cnt < cfg.MinRatingCount {
				adjusted *= cfg.FloorPenalty
				n.applied(it, RulePopularityFloor)
			}
		}

		it.Score = adjusted
	}

	// 规则 3：多样性，迭代执行（见 applyDiversity）。
	n.applyDiversity(items, cfg)
	sortByScore(items)

	if len(items) > cfg.TopN {
		items = items[:cfg.TopN]
	}
	return items, nil
}

// loadContext 读取短期行为上下文。
// 任何错误（包括超时）都降级为空上下文：只跳过规则，不影响请求。
func (n *RuleNode) loadContext(ctx context.Context, rctx *core.RecommendContext) ([]string, map[string]int) {
	if n.Context == nil || rctx == nil || rctx.UserID == "" {
		return nil, nil
	}

	timeout := n.Config.ContextTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ContextTimeout
	}
	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	recentItems, err := n.Context.GetRecentItems(readCtx, rctx.UserID)
	if err != nil {
		recentItems = nil
	}
	recentCats, err := n.Context.GetRecentCategories(readCtx, rctx.UserID)
	if err != nil {
		recentCats = nil
	}
	return recentItems, recentCats
}

// applyDiversity 迭代执行多样性规则：每轮先按当前分数重排，再统计 TopN
// 窗口内的类目占比，超过 DiversityShare 的类目整体降权后进入下一轮；
// 直到某轮没有类目触发，或达到迭代上限。单轮降权后窗口成员会变化，
// 必须重新统计才能让最终窗口真正满足占比约束。
//
// 候选不足时（其他类目的物品填不满窗口）约束本身不可满足，迭代上限
// 保证规则在该情形下仍然终止；解释轨迹对重复命中只记一次。
// 窗口内只有一条的类目不构成同质化，不触发降权。
func (n *RuleNode) applyDiversity(items []*core.Item, cfg Config) {
	const maxIterations = 3

	for iter := 0; iter < maxIterations; iter++ {
		sortByScore(items)

		window := items
		if len(window) > cfg.TopN {
			window = window[:cfg.TopN]
		}

		counts := make(map[string]int)
		for _, it := range window {
			if cat := it.Category(); cat != "" {
				counts[cat]++
			}
		}

		penalized := false
		for cat, count := range counts {
			if count < 2 {
				continue
			}
			if float64(count)/float64(len(window)) <= cfg.DiversityShare {
				continue
			}
			for _, it := range window {
				if it.Category() == cat {
					it.Score *= cfg.DiversityPenalty
					n.appliedOnce(it, RuleDiversityPenalty)
					penalized = true
				}
			}
		}
		if !penalized {
			return
		}
	}
}

func (n *RuleNode) applied(it *core.Item, rule string) {
	it.PutLabel("applied_rules", utils.Label{Value: rule, Source: "rerank"})
}

// appliedOnce 与 applied 相同，但同名规则已在轨迹中时不再追加。
func (n *RuleNode) appliedOnce(it *core.Item, rule string) {
	for _, v := range it.Labels["applied_rules"].Values() {
		if v == rule {
			return
		}
	}
	n.applied(it, rule)
}

// sortByScore 按调整后分数降序稳定排序；并列按排序阶段的原始位次升序，
// 保证只被降权的物品绝不因排序抖动而升位。
func sortByScore(items []*core.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].RankPosition < items[j].RankPosition
	})
}

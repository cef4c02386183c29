package rank

import (
	"context"
	"sort"

	"github.com/rushteam/shoprec/artifact"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/model"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
	"github.com/rushteam/shoprec/pkg/vec"
	"github.com/rushteam/shoprec/recall"
)

// Node 是排序阶段：为每个候选构建固定 schema 特征向量，
// 批内归一化后交给线性模型打分，按概率降序输出。
//
// 排序是 (候选特征, 模型权重) 的纯函数：同输入必得同输出。
// 分数并列时按物品 id 升序做稳定 tie-break，保证确定性。
type Node struct {
	Bundle *artifact.Bundle
	Model  model.RankModel

	// Stats 是可选的在线信号源；nil 或拉取失败时用工件热度表。
	Stats StatsProvider

	// MaxReference 与内容召回保持一致，限制 query 向量的参考物品数。
	MaxReference int
}

func (n *Node) Name() string        { return "rank.lr" }
func (n *Node) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *Node) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Model == nil || len(items) == 0 {
		return items, nil
	}

	var userVector []float64
	if rctx != nil && rctx.UserID != "" {
		userVector, _ = n.Bundle.UserVector(rctx.UserID) // 未知用户：mf_score 全 0
	}

	// 与内容召回共用同一个 query 向量（评分契约的一部分）。
	var query []float64
	if rctx != nil {
		query = recall.QueryVector(n.Bundle, rctx.ReferenceItems, n.MaxReference)
	}

	stats := n.lookupStats(ctx, items)

	// 1) 原始特征
	for _, it := range items {
		it.Feature = n.rawFeature(it, userVector, query, stats)
	}

	// 2) 批内逐特征 min-max 归一化：消除量纲差异，训练与推理同一套规则。
	normalizeBatch(items)

	// 3) 模型打分
	for _, it := range items {
		score, err := n.Model.Predict(*it.Feature)
		if err != nil {
			return nil, err
		}
		it.Score = score
		it.RankScore = score
		it.PutLabel("rank_model", utils.Label{Value: n.Model.Name(), Source: "rank"})
	}

	// 4) 降序排序；并列按 id 升序，保证确定性。
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	for i, it := range items {
		it.RankPosition = i + 1
	}
	return items, nil
}

// lookupStats 拉取候选的热度/评分信号。
// 在线 Provider 失败时静默降级回工件表：可选信号源永不中断请求。
func (n *Node) lookupStats(ctx context.Context, items []*core.Item) map[string]artifact.ItemStats {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}

	if n.Stats != nil {
		if out, err := n.Stats.ItemStats(ctx, ids); err == nil {
			return out
		}
	}
	fallback := &BundleStats{Bundle: n.Bundle}
	out, _ := fallback.ItemStats(ctx, ids)
	return out
}

// rawFeature 构建归一化前的特征，并把重排需要的元信息写进 Meta。
func (n *Node) rawFeature(
	it *core.Item,
	userVector, query []float64,
	stats map[string]artifact.ItemStats,
) *core.FeatureVector {
	fv := &core.FeatureVector{}

	// mf_score：与协同召回完全相同的打分公式；未知用户为 0。
	if userVector != nil {
		if itemVector, ok := n.Bundle.ItemVector(it.ID); ok {
			idx, _ := n.Bundle.ItemIndex(it.ID)
			fv.MF = vec.Dot(userVector, itemVector) + n.Bundle.ItemBiasAt(idx)
		}
	}

	if st, ok := stats[it.ID]; ok {
		fv.Popularity = st.Popularity
		fv.Rating = ratingScore(st.AvgRating)

		it.Meta["rating_number"] = st.RatingNum
		if st.Category != "" {
			it.Meta["category"] = st.Category
		}
		if st.AvgRating != nil {
			it.Meta["avg_rating"] = *st.AvgRating
		}
	}

	// content_score：与内容召回同一 query 向量的余弦相似度。
	// 向量缺失时为 0——与"真实不相似"不可区分，维持原始契约。
	if query != nil {
		if emb, ok := n.Bundle.Embedding(it.ID); ok {
			fv.Content = vec.Cosine(query, emb)
		}
	}
	return fv
}

// ratingScore 把平均评分从 [1,5] 线性映射到 [0,1]；缺失为 0。
func ratingScore(avg *float64) float64 {
	if avg == nil {
		return 0
	}
	s := (*avg - 1) / 4
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// normalizeBatch 对候选批做逐特征 min-max 归一化。
// 常数列（max == min）归一化为 0，防止除零且不引入伪信号。
// 这一步是评分契约的一部分：训练与推理必须一致应用。
func normalizeBatch(items []*core.Item) {
	if len(items) == 0 {
		return
	}

	cols := [core.FeatureDim]struct{ min, max float64 }{}
	for c := range cols {
		cols[c].min = items[0].Feature.Slice()[c]
		cols[c].max = cols[c].min
	}
	for _, it := range items[1:] {
		row := it.Feature.Slice()
		for c := range cols {
			if row[c] < cols[c].min {
				cols[c].min = row[c]
			}
			if row[c] > cols[c].max {
				cols[c].max = row[c]
			}
		}
	}

	for _, it := range items {
		row := it.Feature.Slice()
		for c := range cols {
			span := cols[c].max - cols[c].min
			if span > 0 {
				row[c] = (row[c] - cols[c].min) / span
			} else {
				row[c] = 0
			}
		}
		it.Feature = &core.FeatureVector{
			MF:         row[0],
			Popularity: row[1],
			Rating:     row[2],
			Content:    row[3],
		}
	}
}

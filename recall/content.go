package recall

import (
	"context"
	"sort"

	"github.com/rushteam/shoprec/artifact"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/vec"
)

const (
	// DefaultTopKContent 是内容召回的默认候选数。
	DefaultTopKContent = 50

	// DefaultMaxReference 是参与构建 query 向量的参考物品上限（最新在前）。
	DefaultMaxReference = 10
)

// Content 是基于内容向量的召回源。
//
// 把用户参考物品（最近交互，最新在前、有界）的 embedding 取均值作为
// query 向量，对全部物品 embedding 做余弦相似度暴力检索，取 TopK。
// 工件里的 embedding 已 L2 归一化，均值向量直接可用。
//
// 冷启动契约：用户没有参考物品（或参考物品都没有向量）时产出空集 + nil error。
type Content struct {
	Bundle *artifact.Bundle

	// TopK 返回 TopK 个物品，<=0 时取 DefaultTopKContent。
	TopK int

	// MaxReference 限制参与均值的参考物品数，<=0 时取 DefaultMaxReference。
	MaxReference int
}

func (r *Content) Name() string { return "recall.content" }

func (r *Content) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Bundle == nil || rctx == nil {
		return nil, nil
	}

	query := QueryVector(r.Bundle, rctx.ReferenceItems, r.MaxReference)
	if query == nil {
		return nil, nil
	}

	topK := r.TopK
	if topK <= 0 {
		topK = DefaultTopKContent
	}

	type scoredItem struct {
		id    string
		score float64
	}
	ids := r.Bundle.EmbeddingIDs()
	scores := make([]scoredItem, 0, len(ids))
	for i, id := range ids {
		scores = append(scores, scoredItem{
			id:    id,
			score: vec.Cosine(query, r.Bundle.EmbeddingAt(i)),
		})
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].id < scores[j].id
	})
	if len(scores) > topK {
		scores = scores[:topK]
	}

	out := make([]*core.Item, 0, len(scores))
	for _, s := range scores {
		out = append(out, core.NewItem(s.id))
	}
	return out, nil
}

// QueryVector 由参考物品构建内容 query 向量：取前 maxRef 个（最新在前）
// 有 embedding 的物品做逐位均值。没有可用向量时返回 nil。
//
// 排序阶段的 content_score 必须复用同一个 query 向量，因此单独导出。
func QueryVector(bundle *artifact.Bundle, referenceItems []string, maxRef int) []float64 {
	if bundle == nil || len(referenceItems) == 0 {
		return nil
	}
	if maxRef <= 0 {
		maxRef = DefaultMaxReference
	}

	vectors := make([][]float64, 0, maxRef)
	for _, id := range referenceItems {
		if len(vectors) >= maxRef {
			break
		}
		if emb, ok := bundle.Embedding(id); ok {
			vectors = append(vectors, emb)
		}
	}
	return vec.Mean(vectors)
}

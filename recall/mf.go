package recall

import (
	"context"
	"sort"

	"github.com/rushteam/shoprec/artifact"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/vec"
)

// DefaultTopKMF 是协同召回的默认候选数。
const DefaultTopKMF = 100

// MF 是基于矩阵分解隐向量的协同召回源。
//
// 离线训练、在线查表：对因子表中的每个物品计算
// dot(p_u, q_i) + b_i，取 TopK。
//
// 冷启动契约：用户不在因子表中时产出空集 + nil error——
// 本源内不做兜底替换，兜底是热门源的职责。
type MF struct {
	Bundle *artifact.Bundle

	// TopK 返回 TopK 个物品，<=0 时取 DefaultTopKMF。
	TopK int
}

func (r *MF) Name() string { return "recall.mf" }

func (r *MF) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Bundle == nil || rctx == nil || rctx.UserID == "" {
		return nil, nil
	}

	userVector, ok := r.Bundle.UserVector(rctx.UserID)
	if !ok {
		// 冷启动：未知用户，本源产出空集。
		return nil, nil
	}

	topK := r.TopK
	if topK <= 0 {
		topK = DefaultTopKMF
	}

	type scoredItem struct {
		idx   int
		score float64
	}
	n := r.Bundle.NumItems()
	scores := make([]scoredItem, n)
	for i := 0; i < n; i++ {
		scores[i] = scoredItem{
			idx:   i,
			score: vec.Dot(userVector, r.Bundle.ItemVectorAt(i)) + r.Bundle.ItemBiasAt(i),
		}
	}

	// 分数并列时按行号升序（行号 ↔ id 双射），保证确定性。
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].idx < scores[j].idx
	})
	if len(scores) > topK {
		scores = scores[:topK]
	}

	out := make([]*core.Item, 0, len(scores))
	for _, s := range scores {
		out = append(out, core.NewItem(r.Bundle.ItemID(s.idx)))
	}
	return out, nil
}

package recall

import (
	"context"
	"math/rand"

	"github.com/rushteam/shoprec/artifact"
	"github.com/rushteam/shoprec/core"
)

// DefaultTopKHot 是热门召回的默认候选数。
const DefaultTopKHot = 50

// Hot 是热门召回源：按预计算的归一化热度取全局 TopK，与用户无关。
// 它是冷启动的安全网——匿名/未知用户至少能拿到纯热门结果。
type Hot struct {
	Bundle *artifact.Bundle

	// TopK 返回 TopK 个物品，<=0 时取 DefaultTopKHot。
	TopK int

	// ShuffleTail 开启尾部打散：保留头部 20%，用请求种子打散其余部分。
	// 仅在请求携带 Seed 时生效，保证无种子请求同输入同输出。
	ShuffleTail bool
}

func (r *Hot) Name() string { return "recall.hot" }

func (r *Hot) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Bundle == nil {
		return nil, nil
	}

	topK := r.TopK
	if topK <= 0 {
		topK = DefaultTopKHot
	}

	// 打散时多取一倍作为候选池，头部仍然是真正的热门。
	pool := topK
	if r.ShuffleTail && rctx != nil && rctx.Seed != nil {
		pool = topK * 2
	}
	ids := r.Bundle.PopularityTop(pool)

	if r.ShuffleTail && rctx != nil && rctx.Seed != nil && len(ids) > topK {
		head := len(ids) / 5
		tail := append([]string(nil), ids[head:]...)
		rng := rand.New(rand.NewSource(*rctx.Seed))
		rng.Shuffle(len(tail), func(i, j int) { tail[i], tail[j] = tail[j], tail[i] })
		ids = append(append([]string(nil), ids[:head]...), tail...)
	}
	if len(ids) > topK {
		ids = ids[:topK]
	}

	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.NewItem(id))
	}
	return out, nil
}

package rank

import (
	"context"

	"github.com/rushteam/shoprec/artifact"
)

// StatsProvider 批量提供候选物品的热度/评分/类目信号。
//
// 默认实现直接查工件热度表；也可以换成在线特征库（见 feast 包），
// 把热度与评分换成更新鲜的线上值。Provider 是可选信号源：
// 拉取失败时排序降级回工件表，不上抛。
type StatsProvider interface {
	Name() string
	ItemStats(ctx context.Context, itemIDs []string) (map[string]artifact.ItemStats, error)
}

// BundleStats 是工件热度表实现的 StatsProvider（默认）。
type BundleStats struct {
	Bundle *artifact.Bundle
}

func (p *BundleStats) Name() string { return "stats.bundle" }

func (p *BundleStats) ItemStats(_ context.Context, itemIDs []string) (map[string]artifact.ItemStats, error) {
	out := make(map[string]artifact.ItemStats, len(itemIDs))
	for _, id := range itemIDs {
		if st, ok := p.Bundle.ItemStats(id); ok {
			out[id] = st
		}
	}
	return out, nil
}

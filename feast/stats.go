package feast

import (
	"context"

	"github.com/rushteam/shoprec/artifact"
	"github.com/rushteam/shoprec/pkg/conv"
)

// 物品统计特征在 Feast 中的约定名（特征视图 item_stats）。
const (
	FeatPopularity = "item_stats:popularity_score"
	FeatAvgRating  = "item_stats:avg_rating"
	FeatRatingNum  = "item_stats:rating_number"
	FeatCategory   = "item_stats:category"
)

// StatsProvider 把 Feast 在线特征适配成排序侧的统计信号源
// （实现 rank.StatsProvider）。
//
// 单个物品的特征缺失只影响该物品（用零值），整批请求失败才返回
// 错误——排序侧收到错误会降级回工件热度表。
type StatsProvider struct {
	Client  Client
	Project string

	// EntityKey 是实体列名，缺省 "item_id"。
	EntityKey string
}

func NewStatsProvider(client Client, project string) *StatsProvider {
	return &StatsProvider{Client: client, Project: project, EntityKey: "item_id"}
}

func (p *StatsProvider) Name() string { return "stats.feast" }

func (p *StatsProvider) ItemStats(ctx context.Context, itemIDs []string) (map[string]artifact.ItemStats, error) {
	if len(itemIDs) == 0 {
		return map[string]artifact.ItemStats{}, nil
	}

	entityKey := p.EntityKey
	if entityKey == "" {
		entityKey = "item_id"
	}

	rows := make([]map[string]interface{}, len(itemIDs))
	for i, id := range itemIDs {
		rows[i] = map[string]interface{}{entityKey: id}
	}

	resp, err := p.Client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{
		Features:   []string{FeatPopularity, FeatAvgRating, FeatRatingNum, FeatCategory},
		EntityRows: rows,
		Project:    p.Project,
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]artifact.ItemStats, len(itemIDs))
	for i, fv := range resp.FeatureVectors {
		if i >= len(itemIDs) {
			break
		}
		st := artifact.ItemStats{ItemID: itemIDs[i]}
		if v, ok := fv.Values[FeatPopularity]; ok {
			if f, ok := conv.ToFloat64(v); ok {
				st.Popularity = f
			}
		}
		if v, ok := fv.Values[FeatRatingNum]; ok {
			if n, ok := conv.ToInt(v); ok {
				st.RatingNum = n
			}
		}
		if v, ok := fv.Values[FeatAvgRating]; ok {
			if f, ok := conv.ToFloat64(v); ok {
				st.AvgRating = &f
			}
		}
		if v, ok := fv.Values[FeatCategory]; ok {
			if s, ok := v.(string); ok {
				st.Category = s
			}
		}
		out[itemIDs[i]] = st
	}
	return out, nil
}

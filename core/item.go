package core

import "github.com/rushteam/shoprec/pkg/utils"

// Item 是推荐链路中的统一承载结构：分数、特征、元信息、标签。
// 一次请求内 Item 从召回产生，经排序、重排后输出；不做任何持久化。
//
// Score 是链路当前分数：排序阶段写入模型概率，重排阶段原地调整。
// RankScore / RankPosition 在排序阶段定格，供重排做稳定 tie-break 与解释输出。
type Item struct {
	ID    string // 物品 ID（ASIN 风格的稳定字符串）
	Score float64

	// Feature 是排序阶段构建的固定 schema 特征向量。
	// 召回阶段为 nil；排序阶段填充并用于打分。
	Feature *FeatureVector

	// RankScore 是排序模型输出的原始分数（重排只改 Score，不改 RankScore）。
	RankScore float64
	// RankPosition 是排序后的位次（1-based），重排 tie-break 使用。
	RankPosition int

	// Meta 承载物品元信息：category / rating_number / avg_rating 等。
	Meta map[string]any

	// Labels 用于解释与策略驱动：召回来源、命中的重排规则等。
	Labels map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:     id,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Category 读取物品类目；缺失时返回空串（类目允许为空）。
func (it *Item) Category() string {
	if it.Meta == nil {
		return ""
	}
	if s, ok := it.Meta["category"].(string); ok {
		return s
	}
	return ""
}

// RatingCount 读取物品评分条数；第二个返回值表示元信息是否存在。
func (it *Item) RatingCount() (int, bool) {
	if it.Meta == nil {
		return 0, false
	}
	switch v := it.Meta["rating_number"].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

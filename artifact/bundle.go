// Package artifact 提供离线训练工件的只读加载。
//
// 工件在进程启动时加载一次，之后不可变：所有请求并发只读，无需加锁。
// 工件整体重新生成、整体替换，从不原地打补丁。
//
// 完整性契约：任何必需文件缺失、矩阵行数与 id 映射长度不一致、
// 特征 manifest 不匹配，都在加载期直接失败（MISSING_ARTIFACT）——
// 服务绝不带着不完整的工件上线。
package artifact

import (
	"fmt"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/model"
)

// ItemStats 是热度表中一个物品的预计算信号。
type ItemStats struct {
	ItemID     string   `json:"item_id"`
	Popularity float64  `json:"popularity_score"` // 归一化热度 [0,1]
	RatingNum  int      `json:"rating_number"`    // 评分条数（非负）
	AvgRating  *float64 `json:"avg_rating"`       // 平均评分 0-5，允许为空
	Category   string   `json:"category"`         // 类目，允许为空
}

// Data 是工件的全部原始内容。字段之间的长度约束由 New 校验。
type Data struct {
	Factors    int     // 隐向量维数 k
	GlobalMean float64 // 训练集全局平均分 μ

	UserIDs     []string    // 用户 id，与 UserFactors 行一一对应
	UserFactors [][]float64 // n_users × k
	UserBias    []float64   // n_users

	ItemIDs     []string    // 物品 id，与 ItemFactors 行一一对应
	ItemFactors [][]float64 // n_items × k
	ItemBias    []float64   // n_items

	EmbeddingIDs []string    // 物品 id，与 Embeddings 行一一对应
	Embeddings   [][]float64 // n × dim，L2 归一化的内容向量
	EmbeddingDim int

	Stats []ItemStats // 热度/评分/类目表

	Model *model.LR // 排序模型（manifest 已在加载时校验）
}

// Bundle 是加载完成的只读工件集。
// 索引在构造时建好；构造之后没有任何写路径。
type Bundle struct {
	data Data

	user2idx  map[string]int
	item2idx  map[string]int
	emb2idx   map[string]int
	stats     map[string]ItemStats
	popTop    []string // 按热度降序排好的物品 id（并列时按 id 升序，保证确定性）
}

func errf(format string, args ...any) error {
	return core.NewDomainError(core.ModuleArtifact, core.ErrorCodeMissingArtifact,
		fmt.Sprintf("artifact: "+format, args...))
}

// New 校验 Data 的维度一致性并构建索引。
// 行数 ≠ 映射长度是典型的"半套工件"症状，必须在任何请求被服务前拒绝。
func New(data Data) (*Bundle, error) {
	if data.Factors <= 0 {
		return nil, errf("latent factor dim must be positive, got %d", data.Factors)
	}
	if len(data.UserFactors) != len(data.UserIDs) {
		return nil, errf("user_factors has %d rows but id mapping has %d entries",
			len(data.UserFactors), len(data.UserIDs))
	}
	if len(data.UserBias) != len(data.UserIDs) {
		return nil, errf("user_bias has %d entries but id mapping has %d",
			len(data.UserBias), len(data.UserIDs))
	}
	if len(data.ItemFactors) != len(data.ItemIDs) {
		return nil, errf("item_factors has %d rows but id mapping has %d entries",
			len(data.ItemFactors), len(data.ItemIDs))
	}
	if len(data.ItemBias) != len(data.ItemIDs) {
		return nil, errf("item_bias has %d entries but id mapping has %d",
			len(data.ItemBias), len(data.ItemIDs))
	}
	for i, row := range data.UserFactors {
		if len(row) != data.Factors {
			return nil, errf("user_factors row %d has dim %d, want %d", i, len(row), data.Factors)
		}
	}
	for i, row := range data.ItemFactors {
		if len(row) != data.Factors {
			return nil, errf("item_factors row %d has dim %d, want %d", i, len(row), data.Factors)
		}
	}
	if len(data.Embeddings) != len(data.EmbeddingIDs) {
		return nil, errf("embeddings has %d rows but id list has %d entries",
			len(data.Embeddings), len(data.EmbeddingIDs))
	}
	for i, row := range data.Embeddings {
		if len(row) != data.EmbeddingDim {
			return nil, errf("embedding row %d has dim %d, want %d", i, len(row), data.EmbeddingDim)
		}
	}
	if data.Model == nil {
		return nil, errf("ranking model missing")
	}

	b := &Bundle{
		data:     data,
		user2idx: make(map[string]int, len(data.UserIDs)),
		item2idx: make(map[string]int, len(data.ItemIDs)),
		emb2idx:  make(map[string]int, len(data.EmbeddingIDs)),
		stats:    make(map[string]ItemStats, len(data.Stats)),
	}
	for i, id := range data.UserIDs {
		if _, dup := b.user2idx[id]; dup {
			return nil, errf("duplicate user id %q in mapping", id)
		}
		b.user2idx[id] = i
	}
	for i, id := range data.ItemIDs {
		if _, dup := b.item2idx[id]; dup {
			return nil, errf("duplicate item id %q in mapping", id)
		}
		b.item2idx[id] = i
	}
	for i, id := range data.EmbeddingIDs {
		b.emb2idx[id] = i
	}
	for _, st := range data.Stats {
		b.stats[st.ItemID] = st
	}
	b.buildPopTop()
	return b, nil
}

// Factors 返回隐向量维数 k。
func (b *Bundle) Factors() int { return b.data.Factors }

// GlobalMean 返回训练集全局平均分。
func (b *Bundle) GlobalMean() float64 { return b.data.GlobalMean }

// NumUsers / NumItems 返回因子表规模。
func (b *Bundle) NumUsers() int { return len(b.data.UserIDs) }
func (b *Bundle) NumItems() int { return len(b.data.ItemIDs) }

// UserVector 返回用户隐向量；用户不在因子表中（冷启动）时返回 (nil, false)。
func (b *Bundle) UserVector(userID string) ([]float64, bool) {
	idx, ok := b.user2idx[userID]
	if !ok {
		return nil, false
	}
	return b.data.UserFactors[idx], true
}

// ItemID 返回第 idx 行对应的物品 id。
func (b *Bundle) ItemID(idx int) string { return b.data.ItemIDs[idx] }

// ItemIndex 返回物品在因子表中的行号。
func (b *Bundle) ItemIndex(itemID string) (int, bool) {
	idx, ok := b.item2idx[itemID]
	return idx, ok
}

// ItemVector 返回物品隐向量。
func (b *Bundle) ItemVector(itemID string) ([]float64, bool) {
	idx, ok := b.item2idx[itemID]
	if !ok {
		return nil, false
	}
	return b.data.ItemFactors[idx], true
}

// ItemVectorAt / ItemBiasAt 按行号读取，协同召回全表扫描用。
func (b *Bundle) ItemVectorAt(idx int) []float64 { return b.data.ItemFactors[idx] }
func (b *Bundle) ItemBiasAt(idx int) float64     { return b.data.ItemBias[idx] }

// Embedding 返回物品内容向量；没有向量的物品返回 (nil, false)。
func (b *Bundle) Embedding(itemID string) ([]float64, bool) {
	idx, ok := b.emb2idx[itemID]
	if !ok {
		return nil, false
	}
	return b.data.Embeddings[idx], true
}

// EmbeddingIDs 返回携带内容向量的物品 id 列表（与 EmbeddingAt 平行）。
func (b *Bundle) EmbeddingIDs() []string          { return b.data.EmbeddingIDs }
func (b *Bundle) EmbeddingAt(idx int) []float64   { return b.data.Embeddings[idx] }

// Popularity 返回物品归一化热度；不在热度表中返回 (0, false)。
func (b *Bundle) Popularity(itemID string) (float64, bool) {
	st, ok := b.stats[itemID]
	if !ok {
		return 0, false
	}
	return st.Popularity, true
}

// ItemStats 返回物品的热度表条目。
func (b *Bundle) ItemStats(itemID string) (ItemStats, bool) {
	st, ok := b.stats[itemID]
	return st, ok
}

// PopularityTop 返回按热度降序的前 k 个物品 id（全局，与用户无关）。
// 并列热度按 id 升序排，保证同输入同输出。
func (b *Bundle) PopularityTop(k int) []string {
	if k <= 0 || k > len(b.popTop) {
		k = len(b.popTop)
	}
	out := make([]string, k)
	copy(out, b.popTop[:k])
	return out
}

// Model 返回排序模型。
func (b *Bundle) Model() *model.LR { return b.data.Model }

package core

// FeatureOrder 是排序模型的特征顺序契约。
// 训练与推理必须使用完全相同的顺序；模型工件内嵌同一份 manifest，
// 加载时逐项比对，不一致直接拒绝加载（顺序漂移会静默污染分数）。
var FeatureOrder = []string{
	"mf_score",
	"popularity_score",
	"rating_score",
	"content_score",
}

// FeatureVector 是固定 schema 的排序特征向量。
// 用 struct 而非 map 承载：字段顺序即 FeatureOrder，训练与推理共用同一对象，
// 从结构上消除特征顺序漂移。
type FeatureVector struct {
	MF         float64 // mf_score：user/item 隐向量点积（未知用户为 0）
	Popularity float64 // popularity_score：预计算的归一化热度（缺失为 0）
	Rating     float64 // rating_score：(avg_rating-1)/4 截断到 [0,1]（缺失为 0）
	Content    float64 // content_score：与内容召回同一 query 向量的余弦相似度（缺失为 0）
}

// Slice 按 FeatureOrder 展开为切片，供线性模型点积使用。
func (f FeatureVector) Slice() []float64 {
	return []float64{f.MF, f.Popularity, f.Rating, f.Content}
}

// FeatureDim 是特征维数；模型权重向量长度必须与之一致。
const FeatureDim = 4

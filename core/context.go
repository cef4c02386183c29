package core

// RecommendContext 承载一次推荐请求的用户/场景信息，贯穿整个 Pipeline 透传。
//
// UserID 允许为空（匿名用户）：匿名或未知用户走纯热门兜底，永远不是错误。
type RecommendContext struct {
	UserID string // 使用 string 类型（通用，支持所有 ID 格式）
	Scene  string

	// Count 是期望返回的结果条数；<=0 时由重排 TopN 配置决定。
	Count int

	// Seed 是可选的随机化种子，仅用于热门召回的尾部打散。
	// nil 表示不打散：同输入必须产出同结果。
	Seed *int64

	// ReferenceItems 是用户的参考物品（最近交互，最新在前），
	// 内容召回用它构建 query 向量；为空时内容召回产出空集。
	ReferenceItems []string

	// Params 请求级上下文参数（device_type、page 等），按需透传。
	Params map[string]any
}

// Package shoprec 是一个电商推荐系统（Shop Recommender）。
//
// 设计要点：
// - Pipeline-first: 推荐逻辑通过 Node 串联（Recall → Rank → ReRank）
// - Labels-first: labels 全链路透传与标准化 merge，支撑 explain（applied_rules）
// - 工件只读: 离线训练产出 JSON 工件，启动时整体加载校验，线上只读
// - 显式降级: 召回源失败、上下文不可用都静默降级，请求永不因此失败
package shoprec

import "github.com/rushteam/shoprec/pipeline"

// 轻量 facade：便于用户直接 import "shoprec" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall = pipeline.KindRecall
	KindRank   = pipeline.KindRank
	KindReRank = pipeline.KindReRank
)

package utils

import "strings"

// Label 是推荐链路中的一等公民：可解释、可追踪、可透传。
// 召回来源、排序模型、重排命中的规则都以 Label 形式挂在 Item 上，
// 最终请求响应里的 applied_rules 就是对规则 Label 的展开。
type Label struct {
	Value  string `json:"value"`
	Source string `json:"source"` // recall / rank / rerank / rule ...
}

// MergeLabel 用于合并同名 Label，遵循"保留历史、可追踪"的默认策略。
// - Value: 以 '|' 累积
// - Source: 以 ',' 累积
func MergeLabel(existing Label, incoming Label) Label {
	if existing.Value == "" {
		return incoming
	}
	if incoming.Value == "" {
		return existing
	}

	merged := existing
	merged.Value = existing.Value + "|" + incoming.Value
	switch {
	case existing.Source == "":
		merged.Source = incoming.Source
	case incoming.Source == "":
		merged.Source = existing.Source
	default:
		merged.Source = existing.Source + "," + incoming.Source
	}
	return merged
}

// Values 按 Merge 规则展开累积的 Value。
// 空 Label 返回 nil，保证"未命中任何规则"序列化为空列表而非 [""]。
func (l Label) Values() []string {
	if l.Value == "" {
		return nil
	}
	return strings.Split(l.Value, "|")
}

package model

import "github.com/rushteam/shoprec/core"

// RankModel 是排序阶段的最小抽象：输入固定 schema 特征向量，输出一个可比较的分数。
// 线上实现是本地逻辑回归（LR）；接口留给后续替换打分实现。
type RankModel interface {
	Name() string
	Predict(fv core.FeatureVector) (float64, error)
}

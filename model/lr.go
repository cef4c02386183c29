package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/rushteam/shoprec/core"
)

// LR 实现了逻辑回归 (Logistic Regression) 排序模型。
//
// 预测原理：
// 1. 线性加权求和: z = Intercept + sum(Weights_i * Feature_i)
// 2. Sigmoid 变换: P = 1 / (1 + exp(-z))
//
// 最终输出值 P 是校准后的相关性概率，范围在 (0, 1) 之间。
//
// 权重是按 core.FeatureOrder 排列的定长向量，不是 map：
// 特征顺序漂移会静默污染分数，所以模型工件内嵌自己的 manifest，
// LoadLR 逐项比对后才接受权重。
type LR struct {
	Weights   [core.FeatureDim]float64
	Intercept float64
}

func (m *LR) Name() string { return "lr" }

// Predict 对固定 schema 特征向量输出概率。纯函数，无内部状态。
func (m *LR) Predict(fv core.FeatureVector) (float64, error) {
	z := m.Intercept
	for i, x := range fv.Slice() {
		z += m.Weights[i] * x
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// lrArtifact 是排序模型的序列化格式。
// features 即训练时的特征顺序 manifest，加载期校验的依据。
type lrArtifact struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	Features  []string  `json:"features"`
}

// LoadLR 从 JSON 工件加载排序模型，并校验特征顺序 manifest。
// manifest 与 core.FeatureOrder 不一致（缺失、多余、顺序不同）都视为
// 工件完整性错误：启动期致命。
func LoadLR(path string) (*LR, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeMissingArtifact,
			fmt.Sprintf("model: read %s: %v", path, err))
	}
	var raw lrArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeMissingArtifact,
			fmt.Sprintf("model: parse %s: %v", path, err))
	}
	return NewLRFromArtifact(raw.Weights, raw.Intercept, raw.Features)
}

// NewLRFromArtifact 由权重 + intercept + manifest 构造模型，执行同 LoadLR 的校验。
func NewLRFromArtifact(weights []float64, intercept float64, manifest []string) (*LR, error) {
	if len(manifest) != len(core.FeatureOrder) {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeMissingArtifact,
			fmt.Sprintf("model: feature manifest has %d entries, want %d", len(manifest), len(core.FeatureOrder)))
	}
	for i, name := range core.FeatureOrder {
		if manifest[i] != name {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeMissingArtifact,
				fmt.Sprintf("model: feature manifest[%d] = %q, want %q", i, manifest[i], name))
		}
	}
	if len(weights) != core.FeatureDim {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeMissingArtifact,
			fmt.Sprintf("model: weight vector has %d entries, want %d", len(weights), core.FeatureDim))
	}

	m := &LR{Intercept: intercept}
	copy(m.Weights[:], weights)
	return m, nil
}

// Save 把模型连同特征顺序 manifest 一起写成 JSON 工件。
func (m *LR) Save(path string) error {
	raw := lrArtifact{
		Weights:   m.Weights[:],
		Intercept: m.Intercept,
		Features:  core.FeatureOrder,
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

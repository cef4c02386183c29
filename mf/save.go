package mf

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// factorFile 与 artifact 包的工件布局保持一致：id 列表与矩阵行严格平行。
type factorFile struct {
	IDs     []string    `json:"ids"`
	Vectors [][]float64 `json:"vectors"`
	Bias    []float64   `json:"bias"`
}

type mfMetaFile struct {
	Factors    int     `json:"factors"`
	GlobalMean float64 `json:"global_mean"`
}

// Save 把训练产出整体写到工件目录（mf_meta / user_factors / item_factors）。
// 与 artifact.Load 构成往返契约；工件只整体替换，不原地更新。
func (m *Model) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	writeJSON := func(name string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, name), data, 0o644)
	}

	if err := writeJSON("mf_meta.json", mfMetaFile{
		Factors:    m.Factors,
		GlobalMean: m.GlobalMean,
	}); err != nil {
		return err
	}
	if err := writeJSON("user_factors.json", factorFile{
		IDs:     m.UserIDs,
		Vectors: m.UserFactors,
		Bias:    m.UserBias,
	}); err != nil {
		return err
	}
	return writeJSON("item_factors.json", factorFile{
		IDs:     m.ItemIDs,
		Vectors: m.ItemFactors,
		Bias:    m.ItemBias,
	})
}

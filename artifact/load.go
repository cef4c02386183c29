package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rushteam/shoprec/model"
)

// 工件目录下的文件布局。训练任务 (mf.Model).Save 按同一布局写出。
const (
	FileMFMeta       = "mf_meta.json"
	FileUserFactors  = "user_factors.json"
	FileItemFactors  = "item_factors.json"
	FileEmbeddings   = "item_embeddings.json"
	FilePopularity   = "item_popularity.json"
	FileRankingModel = "ranking_model.json"
)

// factorFile 是因子矩阵文件的序列化格式：id 列表与矩阵行严格平行。
type factorFile struct {
	IDs     []string    `json:"ids"`
	Vectors [][]float64 `json:"vectors"`
	Bias    []float64   `json:"bias"`
}

type mfMetaFile struct {
	Factors    int     `json:"factors"`
	GlobalMean float64 `json:"global_mean"`
}

type embeddingFile struct {
	IDs     []string    `json:"ids"`
	Vectors [][]float64 `json:"vectors"`
	Dim     int         `json:"dim"`
}

func readJSON(dir, name string, v any) error {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return errf("read %s: %v", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errf("parse %s: %v", name, err)
	}
	return nil
}

// Load 从目录加载全部工件并做完整性校验。
// 任一必需文件缺失或维度不一致都直接失败：启动期致命，不带病上线。
func Load(dir string) (*Bundle, error) {
	var meta mfMetaFile
	if err := readJSON(dir, FileMFMeta, &meta); err != nil {
		return nil, err
	}
	var users factorFile
	if err := readJSON(dir, FileUserFactors, &users); err != nil {
		return nil, err
	}
	var items factorFile
	if err := readJSON(dir, FileItemFactors, &items); err != nil {
		return nil, err
	}
	var embs embeddingFile
	if err := readJSON(dir, FileEmbeddings, &embs); err != nil {
		return nil, err
	}
	var stats []ItemStats
	if err := readJSON(dir, FilePopularity, &stats); err != nil {
		return nil, err
	}
	lr, err := model.LoadLR(filepath.Join(dir, FileRankingModel))
	if err != nil {
		return nil, err
	}

	return New(Data{
		Factors:      meta.Factors,
		GlobalMean:   meta.GlobalMean,
		UserIDs:      users.IDs,
		UserFactors:  users.Vectors,
		UserBias:     users.Bias,
		ItemIDs:      items.IDs,
		ItemFactors:  items.Vectors,
		ItemBias:     items.Bias,
		EmbeddingIDs: embs.IDs,
		Embeddings:   embs.Vectors,
		EmbeddingDim: embs.Dim,
		Stats:        stats,
		Model:        lr,
	})
}

// buildPopTop 预先算好全局热度降序序列，热门召回直接截前缀。
// 并列热度按 id 升序，保证排序结果确定。
func (b *Bundle) buildPopTop() {
	ids := make([]string, 0, len(b.stats))
	for id := range b.stats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := b.stats[ids[i]], b.stats[ids[j]]
		if si.Popularity != sj.Popularity {
			return si.Popularity > sj.Popularity
		}
		return ids[i] < ids[j]
	})
	b.popTop = ids
}

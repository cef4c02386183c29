package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/mf"
)

func writeJSON(t *testing.T, dir, name string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// writeBundleDir 用真实训练产出 + 手写的其余文件搭一个完整工件目录。
func writeBundleDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	tr := mf.DefaultTrainer(42)
	tr.Factors = 4
	tr.Epochs = 5
	tr.HoldoutFrac = 0
	m, _, err := tr.Fit([]mf.Rating{
		{UserID: "u1", ItemID: "i1", Score: 5},
		{UserID: "u1", ItemID: "i2", Score: 3},
		{UserID: "u2", ItemID: "i1", Score: 4},
		{UserID: "u2", ItemID: "i2", Score: 2},
	})
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if err := m.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	writeJSON(t, dir, FileEmbeddings, map[string]any{
		"ids":     []string{"i1", "i2"},
		"vectors": [][]float64{{1, 0}, {0, 1}},
		"dim":     2,
	})
	writeJSON(t, dir, FilePopularity, []ItemStats{
		{ItemID: "i1", Popularity: 1.0, RatingNum: 20},
		{ItemID: "i2", Popularity: 0.5, RatingNum: 8},
	})
	writeJSON(t, dir, FileRankingModel, map[string]any{
		"weights":   []float64{0.4, 0.3, 0.2, 0.1},
		"intercept": -0.5,
		"features":  core.FeatureOrder,
	})
	return dir
}

func TestLoad_RoundTrip(t *testing.T) {
	dir := writeBundleDir(t)

	b, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if b.Factors() != 4 {
		t.Errorf("Factors() = %d, want 4", b.Factors())
	}
	if b.NumUsers() != 2 || b.NumItems() != 2 {
		t.Errorf("NumUsers/NumItems = %d/%d, want 2/2", b.NumUsers(), b.NumItems())
	}
	if _, ok := b.Embedding("i1"); !ok {
		t.Error("Embedding(i1) not found after load")
	}
	if b.Model() == nil {
		t.Error("Model() = nil after load")
	}
}

func TestLoad_MissingFileFatal(t *testing.T) {
	for _, name := range []string{
		FileMFMeta, FileUserFactors, FileItemFactors,
		FileEmbeddings, FilePopularity, FileRankingModel,
	} {
		t.Run(name, func(t *testing.T) {
			dir := writeBundleDir(t)
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				t.Fatalf("remove %s: %v", name, err)
			}
			_, err := Load(dir)
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !core.IsMissingArtifact(err) {
				t.Errorf("Load() error = %v, want MISSING_ARTIFACT domain error", err)
			}
		})
	}
}

func TestLoad_ManifestMismatchFatal(t *testing.T) {
	dir := writeBundleDir(t)
	// 特征顺序被调换的模型工件必须在加载期被拒绝
	writeJSON(t, dir, FileRankingModel, map[string]any{
		"weights":   []float64{0.4, 0.3, 0.2, 0.1},
		"intercept": -0.5,
		"features":  []string{"popularity_score", "mf_score", "rating_score", "content_score"},
	})

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Load() expected error, got nil")
	}
	if !core.IsMissingArtifact(err) {
		t.Errorf("Load() error = %v, want MISSING_ARTIFACT domain error", err)
	}
}

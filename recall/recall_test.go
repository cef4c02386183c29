package recall

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/shoprec/artifact"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/model"
	"github.com/rushteam/shoprec/pkg/utils"
)

func testBundle(t *testing.T) *artifact.Bundle {
	t.Helper()
	lr, err := model.NewLRFromArtifact(
		[]float64{0.4, 0.3, 0.2, 0.1}, 0, core.FeatureOrder)
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	b, err := artifact.New(artifact.Data{
		Factors:    2,
		GlobalMean: 3.5,

		UserIDs:     []string{"u1"},
		UserFactors: [][]float64{{1, 0}},
		UserBias:    []float64{0},

		ItemIDs:     []string{"i1", "i2", "i3", "i4"},
		ItemFactors: [][]float64{{1, 0}, {0.5, 0}, {0, 1}, {0.5, 0}},
		ItemBias:    []float64{0, 0, 0, 0.2},

		EmbeddingIDs: []string{"i1", "i2", "i3"},
		Embeddings:   [][]float64{{1, 0}, {0.8, 0.6}, {0, 1}},
		EmbeddingDim: 2,

		Stats: []artifact.ItemStats{
			{ItemID: "i1", Popularity: 0.9, RatingNum: 50},
			{ItemID: "i2", Popularity: 0.7, RatingNum: 30},
			{ItemID: "i3", Popularity: 0.5, RatingNum: 20},
			{ItemID: "i4", Popularity: 0.3, RatingNum: 10},
		},

		Model: lr,
	})
	if err != nil {
		t.Fatalf("artifact.New() error = %v", err)
	}
	return b
}

// fakeSource 是测试用召回源：固定返回或固定失败。
type fakeSource struct {
	name  string
	ids   []string
	err   error
	delay time.Duration
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*core.Item, len(s.ids))
	for i, id := range s.ids {
		out[i] = core.NewItem(id)
	}
	return out, nil
}

func itemIDs(items []*core.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestFanout_MergeUnion(t *testing.T) {
	n := &Fanout{Sources: []Source{
		&fakeSource{name: "a", ids: []string{"i1", "i2"}},
		&fakeSource{name: "b", ids: []string{"i2", "i3"}},
	}}

	items, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	// 去重合并：首次出现保留，i2 只出现一次
	want := []string{"i1", "i2", "i3"}
	if got := itemIDs(items); !reflect.DeepEqual(got, want) {
		t.Errorf("merged ids = %v, want %v", got, want)
	}

	// 重复物品的来源 label 被合并
	for _, it := range items {
		if it.ID != "i2" {
			continue
		}
		lbl := it.Labels["recall_source"]
		values := lbl.Values()
		if len(values) != 2 {
			t.Errorf("i2 recall_source = %q, want both sources merged", lbl.Value)
		}
	}
}

func TestFanout_SourceFailureIsolated(t *testing.T) {
	n := &Fanout{Sources: []Source{
		&fakeSource{name: "broken", err: errors.New("backend down")},
		&fakeSource{name: "ok", ids: []string{"i1"}},
	}}

	items, err := n.Process(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v, source failures must not propagate", err)
	}
	if got := itemIDs(items); !reflect.DeepEqual(got, []string{"i1"}) {
		t.Errorf("ids = %v, want [i1]", got)
	}
}

func TestFanout_SlowSourceTimedOut(t *testing.T) {
	n := &Fanout{
		Timeout: 20 * time.Millisecond,
		Sources: []Source{
			&fakeSource{name: "slow", ids: []string{"i9"}, delay: 500 * time.Millisecond},
			&fakeSource{name: "fast", ids: []string{"i1"}},
		},
	}

	start := time.Now()
	items, err := n.Process(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("Process() took %v, slow source not bounded by timeout", elapsed)
	}
	if got := itemIDs(items); !reflect.DeepEqual(got, []string{"i1"}) {
		t.Errorf("ids = %v, want [i1] (slow source dropped)", got)
	}
}

func TestMF_KnownUser(t *testing.T) {
	b := testBundle(t)
	r := &MF{Bundle: b, TopK: 3}

	items, err := r.Recall(context.Background(), &core.RecommendContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	// u1=(1,0)：i1 dot=1.0 最高，i4 dot+bias=0.7 第二，i2=0.5 第三
	want := []string{"i1", "i4", "i2"}
	if got := itemIDs(items); !reflect.DeepEqual(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
}

func TestMF_UnknownUserColdStart(t *testing.T) {
	b := testBundle(t)
	r := &MF{Bundle: b}

	for _, userID := range []string{"", "stranger"} {
		items, err := r.Recall(context.Background(), &core.RecommendContext{UserID: userID})
		if err != nil {
			t.Fatalf("Recall(%q) error = %v, cold start must be silent", userID, err)
		}
		if len(items) != 0 {
			t.Errorf("Recall(%q) returned %d items, want 0", userID, len(items))
		}
	}
}

func TestHot_TopKOrder(t *testing.T) {
	b := testBundle(t)
	r := &Hot{Bundle: b, TopK: 3}

	items, err := r.Recall(context.Background(), &core.RecommendContext{})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	want := []string{"i1", "i2", "i3"}
	if got := itemIDs(items); !reflect.DeepEqual(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
}

func TestHot_ShuffleNeedsExplicitSeed(t *testing.T) {
	b := testBundle(t)
	r := &Hot{Bundle: b, TopK: 2, ShuffleTail: true}

	// 无种子：打散不生效，两次结果一致
	a, _ := r.Recall(context.Background(), &core.RecommendContext{})
	c, _ := r.Recall(context.Background(), &core.RecommendContext{})
	if !reflect.DeepEqual(itemIDs(a), itemIDs(c)) {
		t.Errorf("no-seed recall not deterministic: %v vs %v", itemIDs(a), itemIDs(c))
	}

	// 同种子：两次结果一致
	seed := int64(7)
	s1, _ := r.Recall(context.Background(), &core.RecommendContext{Seed: &seed})
	s2, _ := r.Recall(context.Background(), &core.RecommendContext{Seed: &seed})
	if !reflect.DeepEqual(itemIDs(s1), itemIDs(s2)) {
		t.Errorf("seeded recall not deterministic: %v vs %v", itemIDs(s1), itemIDs(s2))
	}
	if len(s1) != 2 {
		t.Errorf("len = %d, want TopK = 2", len(s1))
	}
}

func TestContent_ReferenceSimilarity(t *testing.T) {
	b := testBundle(t)
	r := &Content{Bundle: b, TopK: 2}

	items, err := r.Recall(context.Background(), &core.RecommendContext{
		ReferenceItems: []string{"i1"},
	})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	// query = i1 = (1,0)：自身 cos=1 最高，i2 cos=0.8 第二
	want := []string{"i1", "i2"}
	if got := itemIDs(items); !reflect.DeepEqual(got, want) {
		t.Errorf("ids = %v, want %v", got, want)
	}
}

func TestContent_NoReferenceColdStart(t *testing.T) {
	b := testBundle(t)
	r := &Content{Bundle: b}

	tests := []struct {
		name string
		refs []string
	}{
		{"no reference items", nil},
		{"references without embeddings", []string{"unknown1", "unknown2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := r.Recall(context.Background(), &core.RecommendContext{ReferenceItems: tt.refs})
			if err != nil {
				t.Fatalf("Recall() error = %v, cold start must be silent", err)
			}
			if len(items) != 0 {
				t.Errorf("returned %d items, want 0", len(items))
			}
		})
	}
}

func TestQueryVector_MeanOfReferences(t *testing.T) {
	b := testBundle(t)

	q := QueryVector(b, []string{"i1", "i3"}, DefaultMaxReference)
	// mean((1,0), (0,1)) = (0.5, 0.5)
	if !reflect.DeepEqual(q, []float64{0.5, 0.5}) {
		t.Errorf("QueryVector = %v, want [0.5 0.5]", q)
	}

	if q := QueryVector(b, nil, DefaultMaxReference); q != nil {
		t.Errorf("QueryVector(no refs) = %v, want nil", q)
	}
}

// 确认 label 合并在 merge 中保持追加语义
func TestMergeUnion_LabelAccumulation(t *testing.T) {
	a := core.NewItem("x")
	a.PutLabel("recall_source", utils.Label{Value: "hot", Source: "recall"})
	b := core.NewItem("x")
	b.PutLabel("recall_source", utils.Label{Value: "mf", Source: "recall"})

	out := mergeUnion([][]*core.Item{{a}, {b}})
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	values := out[0].Labels["recall_source"].Values()
	if len(values) != 2 {
		t.Errorf("merged label values = %v, want 2 entries", values)
	}
}

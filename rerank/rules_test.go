package rerank

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sort"
	"testing"

	"github.com/rushteam/shoprec/core"
)

// fakeContext 是测试用上下文存储。
type fakeContext struct {
	items []string
	cats  map[string]int
	err   error
}

func (f *fakeContext) GetRecentItems(context.Context, string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func (f *fakeContext) GetRecentCategories(context.Context, string) (map[string]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cats, nil
}

func ranked(id string, score float64, pos int, category string, ratingNum int) *core.Item {
	it := core.NewItem(id)
	it.Score = score
	it.RankScore = score
	it.RankPosition = pos
	if category != "" {
		it.Meta["category"] = category
	}
	it.Meta["rating_number"] = ratingNum
	return it
}

func rulesOf(it *core.Item) []string {
	lbl, ok := it.Labels["applied_rules"]
	if !ok {
		return nil
	}
	return lbl.Values()
}

func find(t *testing.T, items []*core.Item, id string) *core.Item {
	t.Helper()
	for _, it := range items {
		if it.ID == id {
			return it
		}
	}
	t.Fatalf("item %s missing from result", id)
	return nil
}

// noFloor 关闭热度下限，便于单独验证其他规则。
func noFloor() Config {
	cfg := DefaultConfig()
	cfg.PopularityFloor = false
	return cfg
}

func TestRuleNode_IntentBoost(t *testing.T) {
	tests := []struct {
		name       string
		count      int
		wantFactor float64
	}{
		{"count 1", 1, 1.05},
		{"count 2", 2, 1.10},
		{"count 4 at cap", 4, 1.20},
		{"count 10 capped", 10, 1.20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &RuleNode{
				Context: &fakeContext{cats: map[string]int{"Electronics": tt.count}},
				Config:  noFloor(),
			}
			items := []*core.Item{
				ranked("a", 0.5, 1, "Electronics", 100),
				ranked("b", 0.5, 2, "Books", 100),
			}
			out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, items)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}

			boosted := find(t, out, "a")
			want := 0.5 * tt.wantFactor
			if math.Abs(boosted.Score-want) > 1e-12 {
				t.Errorf("boosted score = %v, want %v", boosted.Score, want)
			}
			if got := rulesOf(boosted); !reflect.DeepEqual(got, []string{RuleIntentBoost}) {
				t.Errorf("applied rules = %v, want [%s]", got, RuleIntentBoost)
			}
			if untouched := find(t, out, "b"); untouched.Score != 0.5 {
				t.Errorf("untouched score = %v, want 0.5", untouched.Score)
			}
		})
	}
}

func TestRuleNode_RecencyPenaltyAppliedOnce(t *testing.T) {
	n := &RuleNode{
		// a 在最近浏览里出现两次：惩罚仍只乘一次（成员判定，非计数）
		Context: &fakeContext{items: []string{"a", "b", "a"}},
		Config:  noFloor(),
	}
	items := []*core.Item{
		ranked("a", 0.8, 1, "Electronics", 100),
		ranked("c", 0.6, 2, "Books", 100),
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	penalized := find(t, out, "a")
	if math.Abs(penalized.Score-0.8*0.7) > 1e-12 {
		t.Errorf("penalized score = %v, want %v", penalized.Score, 0.8*0.7)
	}
	if got := rulesOf(penalized); !reflect.DeepEqual(got, []string{RuleRecencyPenalty}) {
		t.Errorf("applied rules = %v, want [%s]", got, RuleRecencyPenalty)
	}
	// 0.8*0.7=0.56 < 0.6：降权后顺位让给 c
	if out[0].ID != "c" {
		t.Errorf("first = %s, want c after recency penalty reorder", out[0].ID)
	}
}

func TestRuleNode_MultiplicativeStacking(t *testing.T) {
	n := &RuleNode{
		Context: &fakeContext{
			items: []string{"a"},
			cats:  map[string]int{"Electronics": 4},
		},
		Config: noFloor(),
	}
	items := []*core.Item{
		ranked("a", 0.5, 1, "Electronics", 100),
		ranked("b", 0.4, 2, "Books", 100),
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	// 固定顺序纯乘法叠加：0.5 * 1.2 * 0.7
	stacked := find(t, out, "a")
	want := 0.5 * 1.2 * 0.7
	if math.Abs(stacked.Score-want) > 1e-12 {
		t.Errorf("stacked score = %v, want %v", stacked.Score, want)
	}
	if got := rulesOf(stacked); !reflect.DeepEqual(got, []string{RuleIntentBoost, RuleRecencyPenalty}) {
		t.Errorf("applied rules = %v, want [intent recency] in order", got)
	}
}

func TestRuleNode_PopularityFloor(t *testing.T) {
	n := &RuleNode{Context: &fakeContext{}, Config: DefaultConfig()}
	items := []*core.Item{
		ranked("cold", 0.6, 1, "Electronics", 3), // 低于阈值 5
		ranked("warm", 0.5, 2, "Books", 5),       // 正好在阈值上，不触发
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	coldItem := find(t, out, "cold")
	if math.Abs(coldItem.Score-0.6*0.9) > 1e-12 {
		t.Errorf("floored score = %v, want %v", coldItem.Score, 0.6*0.9)
	}
	if got := rulesOf(coldItem); !reflect.DeepEqual(got, []string{RulePopularityFloor}) {
		t.Errorf("applied rules = %v, want [%s]", got, RulePopularityFloor)
	}
	if warm := find(t, out, "warm"); len(rulesOf(warm)) != 0 {
		t.Errorf("warm item rules = %v, want none at threshold", rulesOf(warm))
	}
}

func TestRuleNode_DiversityPenalty(t *testing.T) {
	n := &RuleNode{Context: &fakeContext{}, Config: noFloor()}
	// 窗口 5 条里 Electronics 占 3 条（60% > 40%）。候选一共只有 5 条，
	// 无论怎么降权窗口成员都不变、占比不可满足：规则迭代三轮后终止，
	// 每轮都对 Electronics 降一次权，解释轨迹只记一次。
	items := []*core.Item{
		ranked("e1", 0.9, 1, "Electronics", 100),
		ranked("e2", 0.8, 2, "Electronics", 100),
		ranked("e3", 0.7, 3, "Electronics", 100),
		ranked("b1", 0.6, 4, "Books", 100),
		ranked("h1", 0.5, 5, "Home", 100),
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1", Count: 5}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	for _, id := range []string{"e1", "e2", "e3"} {
		it := find(t, out, id)
		if got := rulesOf(it); !reflect.DeepEqual(got, []string{RuleDiversityPenalty}) {
			t.Errorf("%s applied rules = %v, want [%s]", id, got, RuleDiversityPenalty)
		}
	}
	if e1 := find(t, out, "e1"); math.Abs(e1.Score-0.9*0.85*0.85*0.85) > 1e-12 {
		t.Errorf("e1 score = %v, want %v", e1.Score, 0.9*0.85*0.85*0.85)
	}
	for _, id := range []string{"b1", "h1"} {
		if it := find(t, out, id); len(rulesOf(it)) != 0 {
			t.Errorf("%s applied rules = %v, want none", id, rulesOf(it))
		}
	}
}

func TestRuleNode_DiversityCapConverges(t *testing.T) {
	n := &RuleNode{Context: &fakeContext{}, Config: noFloor()}
	// Electronics 三条分数远高于其他类目，单轮 ×0.85 不足以让出位次；
	// 必须迭代重排、重新统计、再降权，最终窗口里 Electronics 不得超过
	// 40%（5 条窗口即最多 2 条）。
	items := []*core.Item{
		ranked("e1", 0.90, 1, "Electronics", 100),
		ranked("e2", 0.89, 2, "Electronics", 100),
		ranked("e3", 0.88, 3, "Electronics", 100),
		ranked("b1", 0.60, 4, "Books", 100),
		ranked("h1", 0.58, 5, "Home", 100),
		ranked("g1", 0.56, 6, "Garden", 100),
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1", Count: 5}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("len = %d, want 5", len(out))
	}

	electronics := 0
	for _, it := range out {
		if it.Category() == "Electronics" {
			electronics++
		}
	}
	if electronics > 2 {
		t.Errorf("Electronics in final window = %d/5, want <= 2 (40%% cap)", electronics)
	}

	// 三轮降权后其他类目整体上位：0.90*0.85^3 ≈ 0.553 < 0.56
	for i, id := range []string{"b1", "h1", "g1"} {
		if out[i].ID != id {
			t.Errorf("out[%d] = %s, want %s", i, out[i].ID, id)
		}
	}
	// 重复命中只记一次
	if got := rulesOf(find(t, out, "e1")); !reflect.DeepEqual(got, []string{RuleDiversityPenalty}) {
		t.Errorf("e1 applied rules = %v, want [%s]", got, RuleDiversityPenalty)
	}
}

func TestRuleNode_DiversitySkipsSingletonCategories(t *testing.T) {
	n := &RuleNode{Context: &fakeContext{}, Config: noFloor()}
	// 两条物品各属一个类目：占比虽然都是 50%，但单条类目不构成同质化
	items := []*core.Item{
		ranked("a", 0.9, 1, "Electronics", 100),
		ranked("b", 0.8, 2, "Books", 100),
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1", Count: 2}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for _, it := range out {
		if len(rulesOf(it)) != 0 {
			t.Errorf("%s applied rules = %v, want none", it.ID, rulesOf(it))
		}
		if it.Score != it.RankScore {
			t.Errorf("%s score = %v, want untouched %v", it.ID, it.Score, it.RankScore)
		}
	}
}

func TestRuleNode_DiversityUnderShareUntouched(t *testing.T) {
	n := &RuleNode{Context: &fakeContext{}, Config: noFloor()}
	// 5 条窗口里 Electronics 占 2 条（40%，不超过阈值）
	items := []*core.Item{
		ranked("e1", 0.9, 1, "Electronics", 100),
		ranked("e2", 0.8, 2, "Electronics", 100),
		ranked("b1", 0.7, 3, "Books", 100),
		ranked("h1", 0.6, 4, "Home", 100),
		ranked("g1", 0.5, 5, "Garden", 100),
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1", Count: 5}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for _, it := range out {
		if len(rulesOf(it)) != 0 {
			t.Errorf("%s applied rules = %v, want none at exactly 40%%", it.ID, rulesOf(it))
		}
	}
}

func TestRuleNode_MembershipPreserved(t *testing.T) {
	n := &RuleNode{
		Context: &fakeContext{
			items: []string{"a", "b"},
			cats:  map[string]int{"Electronics": 9},
		},
		Config: DefaultConfig(),
	}
	items := []*core.Item{
		ranked("a", 0.9, 1, "Electronics", 1),
		ranked("b", 0.8, 2, "Electronics", 2),
		ranked("c", 0.7, 3, "Electronics", 3),
		ranked("d", 0.6, 4, "Books", 100),
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1", Count: 10}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	// 规则只调分重排，绝不删物品：id 集合进出一致
	got := make([]string, len(out))
	for i, it := range out {
		got[i] = it.ID
	}
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("membership changed: %v", got)
	}
}

func TestRuleNode_ContextUnavailableDegrades(t *testing.T) {
	tests := []struct {
		name string
		ctx  core.ContextStore
	}{
		{"store error", &fakeContext{err: errors.New("redis down")}},
		{"domain unavailable", &fakeContext{err: core.ErrContextUnavailable}},
		{"nil store", nil},
		{"empty context", &fakeContext{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &RuleNode{Context: tt.ctx, Config: noFloor()}
			items := []*core.Item{
				ranked("a", 0.9, 1, "Electronics", 100),
				ranked("b", 0.8, 2, "Books", 100),
			}
			out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, items)
			if err != nil {
				t.Fatalf("Process() error = %v, context loss must not fail the request", err)
			}
			// 依赖上下文的规则整体跳过：分数与顺序保持排序阶段产出
			if out[0].ID != "a" || out[1].ID != "b" {
				t.Errorf("order changed without context: %v %v", out[0].ID, out[1].ID)
			}
			for _, it := range out {
				if len(rulesOf(it)) != 0 {
					t.Errorf("%s applied rules = %v, want empty trail", it.ID, rulesOf(it))
				}
				if it.Score != it.RankScore {
					t.Errorf("%s score adjusted without context: %v vs %v", it.ID, it.Score, it.RankScore)
				}
			}
		})
	}
}

func TestRuleNode_TruncatesToRequestedCount(t *testing.T) {
	n := &RuleNode{Context: &fakeContext{}, Config: noFloor()}
	items := make([]*core.Item, 30)
	for i := range items {
		items[i] = ranked(string(rune('a'+i)), 1-float64(i)*0.01, i+1, "C", 100)
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1", Count: 7}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 7 {
		t.Errorf("len = %d, want 7", len(out))
	}

	// Count 未指定时用默认 TopN
	items2 := make([]*core.Item, 30)
	for i := range items2 {
		items2[i] = ranked(string(rune('a'+i)), 1-float64(i)*0.01, i+1, "C", 100)
	}
	out2, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, items2)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out2) != DefaultConfig().TopN {
		t.Errorf("len = %d, want default %d", len(out2), DefaultConfig().TopN)
	}
}

func TestTopNNode(t *testing.T) {
	n := &TopNNode{N: 2}
	items := []*core.Item{
		ranked("a", 0.9, 1, "", 0),
		ranked("b", 0.8, 2, "", 0),
		ranked("c", 0.7, 3, "", 0),
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "b" {
		t.Errorf("out = %v, want prefix [a b]", out)
	}
}

func TestExprRule(t *testing.T) {
	rule, err := NewExprRule("electronics_demote", `item.category == "Electronics"`, 0.5)
	if err != nil {
		t.Fatalf("NewExprRule() error = %v", err)
	}

	items := []*core.Item{
		ranked("a", 0.8, 1, "Electronics", 100),
		ranked("b", 0.6, 2, "Books", 100),
	}
	out, err := rule.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	demoted := find(t, out, "a")
	if math.Abs(demoted.Score-0.4) > 1e-12 {
		t.Errorf("demoted score = %v, want 0.4", demoted.Score)
	}
	if got := rulesOf(demoted); !reflect.DeepEqual(got, []string{"electronics_demote"}) {
		t.Errorf("applied rules = %v, want [electronics_demote]", got)
	}
	// 0.4 < 0.6：重新排序后 b 在前
	if out[0].ID != "b" {
		t.Errorf("first = %s, want b after demotion", out[0].ID)
	}
}

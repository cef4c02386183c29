package feast

import (
	"context"
	"errors"
	"testing"
)

// fakeClient 回放固定特征值，避免依赖真实 Feast 服务器。
type fakeClient struct {
	err error
}

func (f *fakeClient) GetOnlineFeatures(_ context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]FeatureVector, len(req.EntityRows))
	for i, row := range req.EntityRows {
		out[i] = FeatureVector{
			Values: map[string]interface{}{
				FeatPopularity: 0.75,
				FeatAvgRating:  4.2,
				FeatRatingNum:  float64(33), // gRPC 数值统一回 float64
				FeatCategory:   "Electronics",
			},
			EntityRow: row,
		}
	}
	return &GetOnlineFeaturesResponse{FeatureVectors: out}, nil
}

func (f *fakeClient) Close() error { return nil }

func TestStatsProvider_ItemStats(t *testing.T) {
	p := NewStatsProvider(&fakeClient{}, "shoprec")

	out, err := p.ItemStats(context.Background(), []string{"B001", "B002"})
	if err != nil {
		t.Fatalf("ItemStats() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}

	st := out["B001"]
	if st.ItemID != "B001" {
		t.Errorf("ItemID = %q", st.ItemID)
	}
	if st.Popularity != 0.75 {
		t.Errorf("Popularity = %v, want 0.75", st.Popularity)
	}
	if st.RatingNum != 33 {
		t.Errorf("RatingNum = %d, want 33", st.RatingNum)
	}
	if st.AvgRating == nil || *st.AvgRating != 4.2 {
		t.Errorf("AvgRating = %v, want 4.2", st.AvgRating)
	}
	if st.Category != "Electronics" {
		t.Errorf("Category = %q, want Electronics", st.Category)
	}
}

func TestStatsProvider_PropagatesError(t *testing.T) {
	p := NewStatsProvider(&fakeClient{err: errors.New("server down")}, "shoprec")

	if _, err := p.ItemStats(context.Background(), []string{"B001"}); err == nil {
		t.Error("ItemStats() expected error, got nil")
	}
}

func TestStatsProvider_EmptyInput(t *testing.T) {
	p := NewStatsProvider(&fakeClient{}, "shoprec")
	out, err := p.ItemStats(context.Background(), nil)
	if err != nil {
		t.Fatalf("ItemStats() error = %v", err)
	}
	if len(out) != 0 {
		t.Errorf("len = %d, want 0", len(out))
	}
}

// 需要真实 Feast 服务器的连通性测试
func TestGrpcClient_GetOnlineFeatures(t *testing.T) {
	t.Skip("requires a running Feast feature server")

	client, err := NewGrpcClient("localhost", 6565, "shoprec")
	if err != nil {
		t.Fatalf("NewGrpcClient() error = %v", err)
	}
	defer client.Close()

	resp, err := client.GetOnlineFeatures(context.Background(), &GetOnlineFeaturesRequest{
		Features:   []string{FeatPopularity, FeatAvgRating},
		EntityRows: []map[string]interface{}{{"item_id": "B001"}},
	})
	if err != nil {
		t.Fatalf("GetOnlineFeatures() error = %v", err)
	}
	if len(resp.FeatureVectors) != 1 {
		t.Errorf("feature vectors = %d, want 1", len(resp.FeatureVectors))
	}
}

// Package mf 实现显式评分的矩阵分解（SGD）离线训练。
//
// 模型：r̂ = μ + b_u + b_i + p_u·q_i
//
// 不在请求路径上，但训练产出的工件格式与训练不变量是在线核心契约的
// 一部分：工件由 (*Model).Save 整体写出、artifact.Load 整体加载，
// 从不原地打补丁。
package mf

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/rushteam/shoprec/core"
)

// Rating 是一条 (user, item, rating) 训练三元组。
type Rating struct {
	UserID string
	ItemID string
	Score  float64
}

// Trainer 的超参。学习率全局一个；正则分别作用于 bias、用户因子、物品因子。
type Trainer struct {
	Factors      int     // 隐向量维数 k（小数据集建议 10-20）
	LearningRate float64 // SGD 学习率
	RegUser      float64 // 用户因子 L2 正则
	RegItem      float64 // 物品因子 L2 正则
	RegBias      float64 // bias L2 正则
	Epochs       int     // 固定轮数；不做动态收敛判断（显式设计决策）
	Seed         int64   // 随机种子：同种子 + 同输入顺序 → 逐位一致的因子
	HoldoutFrac  float64 // 留出集比例，仅用于监控 RMSE/MAE，不做 early stopping

	// 评分量表，越界即 TRAINING_DATA 错误。零值时取 [1, 5]。
	RatingMin float64
	RatingMax float64
}

// DefaultTrainer 返回原始线上任务使用的超参。
func DefaultTrainer(seed int64) Trainer {
	return Trainer{
		Factors:      15,
		LearningRate: 0.01,
		RegUser:      0.1,
		RegItem:      0.1,
		RegBias:      0.01,
		Epochs:       50,
		Seed:         seed,
		HoldoutFrac:  0.1,
	}
}

// Model 是训练产出的隐表示。行号与 id 列表严格双射。
type Model struct {
	Factors    int
	GlobalMean float64

	UserIDs     []string
	UserFactors [][]float64
	UserBias    []float64

	ItemIDs     []string
	ItemFactors [][]float64
	ItemBias    []float64

	user2idx map[string]int
	item2idx map[string]int

	ratingMin float64
	ratingMax float64
}

// EpochMetrics 是单轮训练的监控指标。
type EpochMetrics struct {
	Epoch       int
	TrainRMSE   float64
	HoldoutRMSE float64 // HoldoutFrac 为 0 时为 NaN
	HoldoutMAE  float64
}

// Report 是整个训练过程的监控记录。
type Report struct {
	TrainSize   int
	HoldoutSize int
	History     []EpochMetrics
}

func trainErr(format string, args ...any) error {
	return core.NewDomainError(core.ModuleMF, core.ErrorCodeTrainingData,
		fmt.Sprintf("mf: "+format, args...))
}

// Fit 用 SGD 训练模型。
//
// 每轮：打散全部训练三元组；对每条计算 error = r - r̂，按以下顺序原地更新
// （物品因子更新使用本条已更新后的用户因子，与原始实现的串行语义一致）：
//
//	b_u += lr * (error - regBias * b_u)
//	b_i += lr * (error - regBias * b_i)
//	p_u += lr * (error * q_i - regUser * p_u)
//	q_i += lr * (error * p_u - regItem * q_i)
//
// 确定性：种子固定、输入顺序固定时，两次训练产出逐位一致。
func (t Trainer) Fit(ratings []Rating) (*Model, *Report, error) {
	lo, hi := t.RatingMin, t.RatingMax
	if lo == 0 && hi == 0 {
		lo, hi = 1, 5
	}

	for i, r := range ratings {
		// NaN 与比较运算永远为 false，必须单独拦截，否则会污染全局均值。
		if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
			return nil, nil, trainErr("rating %v at row %d is not finite", r.Score, i)
		}
		if r.Score < lo || r.Score > hi {
			return nil, nil, trainErr("rating %v at row %d outside scale [%g, %g]", r.Score, i, lo, hi)
		}
	}

	m := &Model{Factors: t.Factors, ratingMin: lo, ratingMax: hi}
	m.buildMappings(ratings)
	if len(m.UserIDs) < 2 || len(m.ItemIDs) < 2 {
		return nil, nil, trainErr("need at least 2 distinct users and items, got %d users, %d items",
			len(m.UserIDs), len(m.ItemIDs))
	}

	rng := rand.New(rand.NewSource(t.Seed))

	// 留出集切分：先按种子打散索引，再切尾部。只用于监控。
	order := make([]int, len(ratings))
	for i := range order {
		order[i] = i
	}
	nHoldout := 0
	if t.HoldoutFrac > 0 {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		nHoldout = int(float64(len(order)) * t.HoldoutFrac)
	}
	train := order[:len(order)-nHoldout]
	holdout := order[len(order)-nHoldout:]

	// 全局均值只在训练切分上算。
	var sum float64
	for _, idx := range train {
		sum += ratings[idx].Score
	}
	m.GlobalMean = sum / float64(len(train))

	m.initParams(rng, t.Factors)

	report := &Report{TrainSize: len(train), HoldoutSize: len(holdout)}

	for epoch := 0; epoch < t.Epochs; epoch++ {
		rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })

		var sqErr float64
		for _, idx := range train {
			r := ratings[idx]
			u := m.user2idx[r.UserID]
			it := m.item2idx[r.ItemID]

			pred := m.predictIdx(u, it)
			err := r.Score - pred
			sqErr += err * err

			m.UserBias[u] += t.LearningRate * (err - t.RegBias*m.UserBias[u])
			m.ItemBias[it] += t.LearningRate * (err - t.RegBias*m.ItemBias[it])

			pu, qi := m.UserFactors[u], m.ItemFactors[it]
			for f := 0; f < t.Factors; f++ {
				pu[f] += t.LearningRate * (err*qi[f] - t.RegUser*pu[f])
				qi[f] += t.LearningRate * (err*pu[f] - t.RegItem*qi[f])
			}
		}

		em := EpochMetrics{
			Epoch:       epoch + 1,
			TrainRMSE:   math.Sqrt(sqErr / float64(len(train))),
			HoldoutRMSE: math.NaN(),
			HoldoutMAE:  math.NaN(),
		}
		if len(holdout) > 0 {
			em.HoldoutRMSE, em.HoldoutMAE = m.evaluate(ratings, holdout)
		}
		report.History = append(report.History, em)
	}

	return m, report, nil
}

// buildMappings 把 user/item id 映射到行号。
// 用排序后的去重列表：映射只取决于出现的 id 集合，与三元组顺序无关。
func (m *Model) buildMappings(ratings []Rating) {
	userSet := make(map[string]struct{})
	itemSet := make(map[string]struct{})
	for _, r := range ratings {
		userSet[r.UserID] = struct{}{}
		itemSet[r.ItemID] = struct{}{}
	}
	m.UserIDs = sortedKeys(userSet)
	m.ItemIDs = sortedKeys(itemSet)

	m.user2idx = make(map[string]int, len(m.UserIDs))
	for i, id := range m.UserIDs {
		m.user2idx[id] = i
	}
	m.item2idx = make(map[string]int, len(m.ItemIDs))
	for i, id := range m.ItemIDs {
		m.item2idx[id] = i
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// initParams 初始化参数：bias 置 0；因子取 N(0, 0.1/sqrt(k))，
// 让早期点积足够小，不冲垮 bias 项。
func (m *Model) initParams(rng *rand.Rand, k int) {
	m.UserBias = make([]float64, len(m.UserIDs))
	m.ItemBias = make([]float64, len(m.ItemIDs))

	scale := 0.1 / math.Sqrt(float64(k))
	m.UserFactors = make([][]float64, len(m.UserIDs))
	for i := range m.UserFactors {
		row := make([]float64, k)
		for f := range row {
			row[f] = rng.NormFloat64() * scale
		}
		m.UserFactors[i] = row
	}
	m.ItemFactors = make([][]float64, len(m.ItemIDs))
	for i := range m.ItemFactors {
		row := make([]float64, k)
		for f := range row {
			row[f] = rng.NormFloat64() * scale
		}
		m.ItemFactors[i] = row
	}
}

func (m *Model) predictIdx(u, it int) float64 {
	pred := m.GlobalMean + m.UserBias[u] + m.ItemBias[it]
	pu, qi := m.UserFactors[u], m.ItemFactors[it]
	for f := range pu {
		pred += pu[f] * qi[f]
	}
	// 截断到量表内：训练误差与评估都用截断后的预测。
	if pred < m.ratingMin {
		return m.ratingMin
	}
	if pred > m.ratingMax {
		return m.ratingMax
	}
	return pred
}

// Predict 预测一个 (user, item) 的评分，双方都必须在训练集中出现过。
func (m *Model) Predict(userID, itemID string) (float64, bool) {
	u, ok := m.user2idx[userID]
	if !ok {
		return 0, false
	}
	it, ok := m.item2idx[itemID]
	if !ok {
		return 0, false
	}
	return m.predictIdx(u, it), true
}

// evaluate 在留出集上算 RMSE / MAE。
func (m *Model) evaluate(ratings []Rating, idxs []int) (rmse, mae float64) {
	var sq, abs float64
	for _, idx := range idxs {
		r := ratings[idx]
		pred := m.predictIdx(m.user2idx[r.UserID], m.item2idx[r.ItemID])
		diff := r.Score - pred
		sq += diff * diff
		abs += math.Abs(diff)
	}
	n := float64(len(idxs))
	return math.Sqrt(sq / n), abs / n
}

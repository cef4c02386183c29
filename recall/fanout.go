package recall

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
)

// Fanout 是一个 Recall Node：并发执行多个召回源，并做无序去重合并。
//
// 各召回源只读不可变的工件表，互相独立，直接并发跑。
// 单个源超时或报错时丢弃该源的结果、打 label 记录，不中断其他源、
// 不上抛——请求必须在有界时延内给出结果（§纯热门兜底由 Hot 源保证）。
//
// 合并策略固定为 union 去重：首次出现保留，不携带任何来源优先级，
// 召回分数也不透传——下游排序对每个候选独立重算，最终顺序由排序决定。
type Fanout struct {
	Sources []Source
	Timeout time.Duration // 每个召回源的超时时间（0 表示不限制）
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	var (
		mu sync.Mutex
		// 按 Sources 顺序收集各源结果，合并结果与并发调度顺序无关。
		results = make([][]*core.Item, len(n.Sources))
	)
	eg, egCtx := errgroup.WithContext(ctx)

	for i, src := range n.Sources {
		i, s := i, src
		eg.Go(func() error {
			recallCtx := egCtx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(egCtx, n.Timeout)
				defer cancel()
			}

			items, err := s.Recall(recallCtx, rctx)
			if err != nil {
				// 可选信号源失效：隔离，绝不中断整个召回。
				return nil
			}

			for _, it := range items {
				it.PutLabel("recall_source", utils.Label{Value: s.Name(), Source: "recall"})
			}

			mu.Lock()
			results[i] = items
			mu.Unlock()
			return nil
		})
	}

	// 源错误都被吞掉了，这里的 err 恒为 nil；保留形态以防未来扩展。
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return mergeUnion(results), nil
}

// mergeUnion 按 ID 去重合并：首次出现保留，后续重复只合并 labels。
// 同一输入集合不论以什么顺序归并，产出的候选集（作为集合）一致。
func mergeUnion(results [][]*core.Item) []*core.Item {
	seen := make(map[string]*core.Item, 256)
	out := make([]*core.Item, 0, 256)
	for _, items := range results {
		for _, it := range items {
			if it == nil {
				continue
			}
			if old, ok := seen[it.ID]; ok {
				for k, v := range it.Labels {
					old.PutLabel(k, v)
				}
				continue
			}
			seen[it.ID] = it
			out = append(out, it)
		}
	}
	return out
}

package recall

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// Source 表示一个可复用的召回源（协同/热门/内容）。
// 可以把它理解为"可并发 fan-out 的策略单元"。
//
// 契约：冷启动（未知用户、无参考物品）返回空集 + nil error，不是错误；
// 召回源内部不做兜底替换，兜底由热门源承担。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

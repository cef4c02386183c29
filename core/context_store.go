package core

import "context"

// ContextStore 是短期行为上下文的领域接口（只读）。
//
// 由事件采集侧写入、外部管理 TTL；本核心只消费。重排引擎通过显式注入
// 使用它，不存在进程级单例。
//
// 契约：上下文是建议性信号——允许过期、为空、部分缺失，消费方必须
// 无损降级为"无个性化信号"，绝不因上下文不可用而失败。
type ContextStore interface {
	// GetRecentItems 返回用户最近触达的物品 ID（最新在前，长度有界）。
	GetRecentItems(ctx context.Context, userID string) ([]string, error)

	// GetRecentCategories 返回用户最近的类目 -> 交互次数映射。
	GetRecentCategories(ctx context.Context, userID string) (map[string]int, error)
}

// ErrContextUnavailable 表示上下文存储不可达。
// 请求期可恢复错误：调用方按空上下文处理，只记录不上抛。
var ErrContextUnavailable = NewDomainError(ModuleContext, ErrorCodeUnavailable, "context: store unavailable")

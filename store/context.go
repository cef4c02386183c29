package store

import (
	"context"
	"strconv"

	"github.com/rushteam/shoprec/core"
)

// 行为上下文的 key 布局与容量。
// List 存最近浏览（最新在前），Hash 存类目浏览计数；
// 过期由 TTL 兜底，不在读路径上做清理。
const (
	keyRecentItems      = ":recent_items"
	keyRecentCategories = ":recent_categories"

	// MaxRecentItems 是最近浏览列表的上限，写入时截断。
	MaxRecentItems = 20

	// DefaultContextTTL 是行为上下文的过期时间（秒），一天。
	DefaultContextTTL = 86400
)

// KVContext 是基于 KeyValueStore 的行为上下文存储。
// 同一实现可运行在 MemoryStore（测试）与 RedisStore（线上）之上。
//
// 读路径实现 core.ContextStore；写路径（Touch）由行为上报侧调用，
// 推荐链路本身只读。
type KVContext struct {
	KV  core.KeyValueStore
	TTL int // 秒；<=0 时用 DefaultContextTTL
}

var _ core.ContextStore = (*KVContext)(nil)

func NewKVContext(kv core.KeyValueStore) *KVContext {
	return &KVContext{KV: kv, TTL: DefaultContextTTL}
}

func (s *KVContext) GetRecentItems(ctx context.Context, userID string) ([]string, error) {
	if s.KV == nil || userID == "" {
		return nil, core.ErrContextUnavailable
	}
	items, err := s.KV.LRange(ctx, "user:"+userID+keyRecentItems, 0, MaxRecentItems-1)
	if err != nil {
		return nil, core.ErrContextUnavailable
	}
	return items, nil
}

func (s *KVContext) GetRecentCategories(ctx context.Context, userID string) (map[string]int, error) {
	if s.KV == nil || userID == "" {
		return nil, core.ErrContextUnavailable
	}
	raw, err := s.KV.HGetAll(ctx, "user:"+userID+keyRecentCategories)
	if err != nil {
		return nil, core.ErrContextUnavailable
	}

	counts := make(map[string]int, len(raw))
	for cat, v := range raw {
		n, err := strconv.Atoi(string(v))
		if err != nil || n <= 0 {
			continue
		}
		counts[cat] = n
	}
	return counts, nil
}

// Touch 记录一次浏览行为：物品进最近列表（截断到上限），
// 类目计数自增，两个 key 都续期。
func (s *KVContext) Touch(ctx context.Context, userID, itemID, category string) error {
	if s.KV == nil || userID == "" || itemID == "" {
		return core.ErrContextUnavailable
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}

	itemsKey := "user:" + userID + keyRecentItems
	if err := s.KV.LPush(ctx, itemsKey, itemID); err != nil {
		return err
	}
	if err := s.KV.LTrim(ctx, itemsKey, 0, MaxRecentItems-1); err != nil {
		return err
	}
	if err := s.KV.Expire(ctx, itemsKey, ttl); err != nil {
		return err
	}

	if category != "" {
		catsKey := "user:" + userID + keyRecentCategories
		if err := s.KV.HIncrBy(ctx, catsKey, category, 1); err != nil {
			return err
		}
		if err := s.KV.Expire(ctx, catsKey, ttl); err != nil {
			return err
		}
	}
	return nil
}

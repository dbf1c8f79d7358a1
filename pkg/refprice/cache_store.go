// 文件: pkg/refprice/cache_store.go
// 参考价 Redis 缓存层
//
// 【设计模式】装饰器模式，Cache Aside
// - 单日:   overnight:refprice:{symbol}:{date}
// - 全序列: overnight:refprice:{symbol}:all  (统计层每次读整个品种，Range 在内存里截取)
// - 写入/删除后同时删两类 key
//
// 批处理走的是事务写 (series.GormUnitWriter)，不经过 Upsert，
// 所以写完之后由调用方调用 Invalidate。

package refprice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"overnight.com/pkg/market"
)

var _ Store = (*CachedStore)(nil)

const (
	cacheKeyDay    = "overnight:refprice:%s:%s"
	cacheKeySeries = "overnight:refprice:%s:all"

	// DefaultCacheTTL 默认缓存过期时间
	DefaultCacheTTL = 10 * time.Minute
)

// CachedStore Redis 缓存装饰器
type CachedStore struct {
	store Store
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedStore ttl <= 0 用默认值
func NewCachedStore(store Store, rds *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{store: store, redis: rds, ttl: ttl}
}

// =============================================================================
// 读操作
// =============================================================================

func (s *CachedStore) Get(ctx context.Context, symbol string, date time.Time) (*Record, error) {
	key := fmt.Sprintf(cacheKeyDay, symbol, market.FormatDate(date))

	if data, err := s.redis.Get(ctx, key).Bytes(); err == nil {
		var rec Record
		if json.Unmarshal(data, &rec) == nil {
			return &rec, nil
		}
	}

	rec, err := s.store.Get(ctx, symbol, date)
	if err != nil {
		return nil, err
	}
	s.set(ctx, key, rec)
	return rec, nil
}

func (s *CachedStore) Range(ctx context.Context, symbol string, from, to time.Time) ([]Record, error) {
	all, err := s.series(ctx, symbol)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(all))
	for _, r := range all {
		if r.TradeDate.Before(from) || r.TradeDate.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *CachedStore) Bounds(ctx context.Context, symbol string) (time.Time, time.Time, error) {
	all, err := s.series(ctx, symbol)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if len(all) == 0 {
		return time.Time{}, time.Time{}, ErrNotFound
	}
	return all[0].TradeDate, all[len(all)-1].TradeDate, nil
}

// Candidates 跨品种聚合，不缓存
func (s *CachedStore) Candidates(ctx context.Context, minRows int64) ([]Candidate, error) {
	return s.store.Candidates(ctx, minRows)
}

func (s *CachedStore) series(ctx context.Context, symbol string) ([]Record, error) {
	key := fmt.Sprintf(cacheKeySeries, symbol)

	if data, err := s.redis.Get(ctx, key).Bytes(); err == nil {
		var recs []Record
		if json.Unmarshal(data, &recs) == nil {
			return recs, nil
		}
	}

	recs, err := s.store.Range(ctx, symbol, MinDate, MaxDate)
	if err != nil {
		return nil, err
	}
	s.set(ctx, key, recs)
	return recs, nil
}

// =============================================================================
// 写操作
// =============================================================================

func (s *CachedStore) Upsert(ctx context.Context, records ...Record) error {
	if err := s.store.Upsert(ctx, records...); err != nil {
		return err
	}
	for _, r := range records {
		s.Invalidate(ctx, r.SymbolCode, r.TradeDate)
	}
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, symbol string, date time.Time) error {
	if err := s.store.Delete(ctx, symbol, date); err != nil {
		return err
	}
	s.Invalidate(ctx, symbol, date)
	return nil
}

// Invalidate 删除单日和整个序列的缓存
func (s *CachedStore) Invalidate(ctx context.Context, symbol string, date time.Time) {
	s.redis.Del(ctx,
		fmt.Sprintf(cacheKeyDay, symbol, market.FormatDate(date)),
		fmt.Sprintf(cacheKeySeries, symbol),
	)
}

func (s *CachedStore) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.redis.Set(ctx, key, data, s.ttl)
}

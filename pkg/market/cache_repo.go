// 文件: pkg/market/cache_repo.go
// 合约参考数据 Redis 缓存层
//
// 【设计模式】装饰器模式
// - 包装底层 ContractRepository，调用方无感知
// - 读: 先查 Redis，miss 查底层并回填
// - 写: 先写底层，成功后删缓存 (Cache Aside)
//
// 批处理会对同一个品种反复取合约列表 (每个 worker、每次 watch 触发)，
// 合约列表本身很少变，适合缓存。首/末交易日刷新后必须失效。

package market

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ ContractRepository = (*CachedContractRepository)(nil)

const (
	// overnight:contracts:{symbol}
	contractCacheKeyPrefix = "overnight:contracts:"

	// 默认缓存过期时间
	DefaultContractCacheTTL = 30 * time.Minute
)

// CachedContractRepository Redis 缓存装饰器
type CachedContractRepository struct {
	repo  ContractRepository
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedContractRepository 创建带缓存的 Repository
//
// 用法:
//
//	mysqlRepo := NewMySQLRepository(db)
//	contracts := NewCachedContractRepository(mysqlRepo, rdb, 0)
func NewCachedContractRepository(repo ContractRepository, rds *redis.Client, ttl time.Duration) *CachedContractRepository {
	if ttl <= 0 {
		ttl = DefaultContractCacheTTL
	}
	return &CachedContractRepository{repo: repo, redis: rds, ttl: ttl}
}

// =============================================================================
// 读操作
// =============================================================================

// ContractsBySymbol 带缓存
func (r *CachedContractRepository) ContractsBySymbol(ctx context.Context, code string) ([]Contract, error) {
	key := contractCacheKeyPrefix + code

	// 1. 查缓存
	data, err := r.redis.Get(ctx, key).Bytes()
	if err == nil {
		var contracts []Contract
		if json.Unmarshal(data, &contracts) == nil {
			return contracts, nil
		}
	}

	// 2. miss 查底层
	contracts, err := r.repo.ContractsBySymbol(ctx, code)
	if err != nil {
		return nil, err
	}

	// 3. 回填 (同步写，批处理里没有必要异步)
	if data, err := json.Marshal(contracts); err == nil {
		r.redis.Set(ctx, key, data, r.ttl)
	}
	return contracts, nil
}

// Symbols 不缓存
func (r *CachedContractRepository) Symbols(ctx context.Context) ([]Symbol, error) {
	return r.repo.Symbols(ctx)
}

// GetSymbol 不缓存
func (r *CachedContractRepository) GetSymbol(ctx context.Context, code string) (*Symbol, error) {
	return r.repo.GetSymbol(ctx, code)
}

// =============================================================================
// 写操作 (写底层 + 删缓存)
// =============================================================================

// EnsureSymbol 新品种没有缓存，直接透传
func (r *CachedContractRepository) EnsureSymbol(ctx context.Context, sym *Symbol) error {
	return r.repo.EnsureSymbol(ctx, sym)
}

// EnsureContract 新合约会改变合约列表
func (r *CachedContractRepository) EnsureContract(ctx context.Context, c *Contract) error {
	if err := r.repo.EnsureContract(ctx, c); err != nil {
		return err
	}
	r.Invalidate(ctx, c.SymbolCode)
	return nil
}

// RefreshTradeDates 刷新后失效
func (r *CachedContractRepository) RefreshTradeDates(ctx context.Context, code string) (int64, error) {
	n, err := r.repo.RefreshTradeDates(ctx, code)
	if err != nil {
		return n, err
	}
	r.Invalidate(ctx, code)
	return n, nil
}

// Invalidate 删除品种的合约列表缓存
func (r *CachedContractRepository) Invalidate(ctx context.Context, code string) {
	r.redis.Del(ctx, contractCacheKeyPrefix+code)
}

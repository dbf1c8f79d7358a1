// 文件: pkg/market/repository.go
// 参考数据与K线存储接口
//
// 【设计模式】Repository Pattern
// - 引擎只依赖接口，不关心底层是 MySQL 还是内存
// - 缓存层用装饰器叠加 (cache_repo.go)
// - 单元测试用内存实现

package market

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// 错误定义
// =============================================================================

var (
	ErrUnknownSymbol   = errors.New("unknown symbol")
	ErrContractExists  = errors.New("contract already exists")
	ErrInvalidRule     = errors.New("invalid rollover rule")
	ErrInvalidRuleFile = errors.New("invalid rollover rule file")
)

// =============================================================================
// 接口
// =============================================================================

// ContractRepository 品种/合约参考数据
type ContractRepository interface {
	// Symbols 所有品种，按代码升序
	Symbols(ctx context.Context) ([]Symbol, error)

	// GetSymbol 不存在返回 ErrUnknownSymbol
	GetSymbol(ctx context.Context, code string) (*Symbol, error)

	// ContractsBySymbol 品种下的全部合约，按 contract_id 升序
	ContractsBySymbol(ctx context.Context, code string) ([]Contract, error)

	// EnsureSymbol 品种不存在时创建
	EnsureSymbol(ctx context.Context, sym *Symbol) error

	// EnsureContract 按 SourceFile 幂等创建，返回带 ID 的合约
	EnsureContract(ctx context.Context, c *Contract) error

	// RefreshTradeDates 重新扫描K线计算首/末交易日，返回更新的合约数
	RefreshTradeDates(ctx context.Context, code string) (int64, error)
}

// BarRepository K线只读接口
type BarRepository interface {
	// Bars 合约在 [from, to) 内的K线，按时间升序
	Bars(ctx context.Context, contractID int64, from, to time.Time) ([]Bar, error)
}

// RuleRepository 展期规则
type RuleRepository interface {
	// Rules symbol -> rule
	Rules(ctx context.Context) (map[string]RolloverRule, error)

	// UpsertRules 批量写入/覆盖，返回影响行数
	UpsertRules(ctx context.Context, rules []RolloverRule) (int64, error)
}

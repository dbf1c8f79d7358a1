// 文件: pkg/market/mysql_repo.go
// 参考数据 / K线 MySQL 实现
//
// 【设计】
// - 使用 GORM
// - 一个 struct 同时实现三个接口，共用一个 *gorm.DB
// - 所有操作带 context 支持超时控制

package market

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 确保实现了接口
var (
	_ ContractRepository = (*MySQLRepository)(nil)
	_ BarRepository      = (*MySQLRepository)(nil)
	_ RuleRepository     = (*MySQLRepository)(nil)
)

// MySQLRepository MySQL 实现
type MySQLRepository struct {
	db *gorm.DB
}

// NewMySQLRepository 创建 MySQL 存储
func NewMySQLRepository(db *gorm.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

// AutoMigrate 建表 (测试/初始化用)
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Symbol{}, &Contract{}, &Bar{}, &RolloverRule{})
}

// =============================================================================
// ContractRepository
// =============================================================================

// Symbols 所有品种
func (r *MySQLRepository) Symbols(ctx context.Context) ([]Symbol, error) {
	var syms []Symbol
	err := r.db.WithContext(ctx).
		Order("symbol_code").
		Find(&syms).Error
	return syms, err
}

// GetSymbol 查询单个品种
func (r *MySQLRepository) GetSymbol(ctx context.Context, code string) (*Symbol, error) {
	var sym Symbol
	err := r.db.WithContext(ctx).
		Where("symbol_code = ?", code).
		First(&sym).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownSymbol
		}
		return nil, err
	}
	return &sym, nil
}

// ContractsBySymbol 品种下所有合约
func (r *MySQLRepository) ContractsBySymbol(ctx context.Context, code string) ([]Contract, error) {
	var contracts []Contract
	err := r.db.WithContext(ctx).
		Where("symbol_code = ?", code).
		Order("contract_id").
		Find(&contracts).Error
	return contracts, err
}

// EnsureSymbol 不存在则创建，已存在不覆盖描述
func (r *MySQLRepository) EnsureSymbol(ctx context.Context, sym *Symbol) error {
	if sym.Description == "" {
		sym.Description = sym.Code
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(sym).Error
}

// EnsureContract 按文件名幂等创建
// MySQL 没有 RETURNING，冲突更新后再查一次拿 ID
func (r *MySQLRepository) EnsureContract(ctx context.Context, c *Contract) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kibot_filename"}},
			DoUpdates: clause.AssignmentColumns([]string{"symbol_code", "month_code", "year"}),
		}).Create(c).Error
		if err != nil {
			return err
		}
		var saved Contract
		if err := tx.Where("kibot_filename = ?", c.SourceFile).First(&saved).Error; err != nil {
			return err
		}
		c.ID = saved.ID
		return nil
	})
}

// RefreshTradeDates 从K线重新计算首/末交易日
// 没有K线的合约会被置回 NULL
func (r *MySQLRepository) RefreshTradeDates(ctx context.Context, code string) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE contracts c
		LEFT JOIN (
			SELECT contract_id,
			       MIN(DATE(timestamp)) AS first_d,
			       MAX(DATE(timestamp)) AS last_d
			FROM bars_5min
			GROUP BY contract_id
		) b ON b.contract_id = c.contract_id
		SET c.first_trade_date = b.first_d,
		    c.last_trade_date  = b.last_d
		WHERE c.symbol_code = ?`, code)
	return result.RowsAffected, result.Error
}

// =============================================================================
// BarRepository
// =============================================================================

// Bars 合约区间K线
func (r *MySQLRepository) Bars(ctx context.Context, contractID int64, from, to time.Time) ([]Bar, error) {
	var bars []Bar
	err := r.db.WithContext(ctx).
		Where("contract_id = ? AND timestamp >= ? AND timestamp < ?", contractID, from, to).
		Order("timestamp").
		Find(&bars).Error
	return bars, err
}

// =============================================================================
// RuleRepository
// =============================================================================

// Rules 所有展期规则
func (r *MySQLRepository) Rules(ctx context.Context) (map[string]RolloverRule, error) {
	var rules []RolloverRule
	if err := r.db.WithContext(ctx).Find(&rules).Error; err != nil {
		return nil, err
	}
	out := make(map[string]RolloverRule, len(rules))
	for _, rule := range rules {
		out[rule.SymbolCode] = rule
	}
	return out, nil
}

// UpsertRules 按 symbol_code 覆盖
func (r *MySQLRepository) UpsertRules(ctx context.Context, rules []RolloverRule) (int64, error) {
	if len(rules) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "rollover_days", "rollover_type"}),
		}).
		Create(&rules)
	return result.RowsAffected, result.Error
}

// 文件: pkg/market/model.go
// 期货参考数据模型: 品种、合约、K线、展期规则
//
// 设计说明:
// 1. 参考数据只读，引擎不修改 (合约的首/末交易日除外，它是从K线推导出来的缓存字段)
// 2. 交易日统一用 UTC 零点的 time.Time 表示，见 date.go
// 3. 可缺失的字段一律用指针，NULL 与 0 语义不同 (例如成交量缺失 ≠ 零成交)

package market

import (
	"fmt"
	"time"
)

// =============================================================================
// Symbol - 品种
// =============================================================================

// Symbol 期货品种，如 "ES"
type Symbol struct {
	Code        string `gorm:"column:symbol_code;primaryKey;type:varchar(16)" json:"code"`
	Description string `gorm:"column:description;type:varchar(128)" json:"description"`
}

func (Symbol) TableName() string {
	return "symbols"
}

// =============================================================================
// Contract - 合约 (某个品种的某个到期月)
// =============================================================================

// Contract 单个到期合约
//
// FirstTradeDate / LastTradeDate 是扫描K线得到的派生字段，不是权威数据，
// 没有K线之前为 NULL。ExpiryDate 可能未知。
type Contract struct {
	ID         int64  `gorm:"column:contract_id;primaryKey;autoIncrement" json:"id"`
	SymbolCode string `gorm:"column:symbol_code;type:varchar(16);index" json:"symbol"`
	MonthCode  string `gorm:"column:month_code;type:char(1)" json:"month_code"`
	Year       int    `gorm:"column:year" json:"year"`

	ExpiryDate     *time.Time `gorm:"column:expiry_date;type:date" json:"expiry_date,omitempty"`
	FirstTradeDate *time.Time `gorm:"column:first_trade_date;type:date" json:"first_trade_date,omitempty"`
	LastTradeDate  *time.Time `gorm:"column:last_trade_date;type:date" json:"last_trade_date,omitempty"`

	SourceFile string `gorm:"column:kibot_filename;type:varchar(64);uniqueIndex" json:"source_file"`
}

func (Contract) TableName() string {
	return "contracts"
}

// Code 合约代码，如 ESH24
func (c *Contract) Code() string {
	return fmt.Sprintf("%s%s%02d", c.SymbolCode, c.MonthCode, c.Year%100)
}

// HasExpiry 是否有到期日元数据
func (c *Contract) HasExpiry() bool {
	return c.ExpiryDate != nil && !c.ExpiryDate.IsZero()
}

// =============================================================================
// Bar - K线 (固定周期 OHLCV)
// =============================================================================

// Bar 一根K线，主键 (contract_id, timestamp)
//
// Timestamp 是K线开始时间 (交易所本地时间的墙上时钟)。
// 例: 5分钟线 15:55 覆盖 15:55–16:00，其 Close 即 16:00 的价格。
type Bar struct {
	ContractID int64     `gorm:"column:contract_id;primaryKey" json:"contract_id"`
	Timestamp  time.Time `gorm:"column:timestamp;primaryKey;type:datetime" json:"timestamp"`
	Open       *float64  `gorm:"column:open" json:"open"`
	High       *float64  `gorm:"column:high" json:"high"`
	Low        *float64  `gorm:"column:low" json:"low"`
	Close      *float64  `gorm:"column:close" json:"close"`
	Volume     *int64    `gorm:"column:volume" json:"volume"`
}

func (Bar) TableName() string {
	return "bars_5min"
}

// VolumeOrZero 聚合用的成交量: 缺失按 0 计
func (b *Bar) VolumeOrZero() int64 {
	if b.Volume == nil {
		return 0
	}
	return *b.Volume
}

// TradeDate K线所属交易日
func (b *Bar) TradeDate() time.Time {
	return DateOf(b.Timestamp)
}

// =============================================================================
// RolloverRule - 展期规则
// =============================================================================

// RuleType 展期规则类型
type RuleType string

const (
	RuleBeforeExpiry      RuleType = "before_expiry"        // 到期前 N 天展期
	RuleFromPriorMonthEnd RuleType = "from_prior_month_end" // 到期月前一个月月末 + N 天展期
	RuleOnExpiry          RuleType = "on_expiry"            // 到期日当天展期 (N=0)
)

// RolloverRule 每个品种最多一条
// 没有规则 = 只按成交量选合约
type RolloverRule struct {
	SymbolCode  string   `gorm:"column:symbol_code;primaryKey;type:varchar(16)" json:"symbol"`
	Description string   `gorm:"column:description;type:varchar(128)" json:"description"`
	Days        int      `gorm:"column:rollover_days" json:"days"`
	Type        RuleType `gorm:"column:rollover_type;type:varchar(32)" json:"type"`
}

func (RolloverRule) TableName() string {
	return "rollover_rules"
}

// Validate 校验规则类型与天数
func (r *RolloverRule) Validate() error {
	switch r.Type {
	case RuleBeforeExpiry, RuleFromPriorMonthEnd:
		if r.Days < 0 {
			return fmt.Errorf("%w: %s days=%d", ErrInvalidRule, r.SymbolCode, r.Days)
		}
	case RuleOnExpiry:
		if r.Days != 0 {
			return fmt.Errorf("%w: %s on_expiry requires days=0, got %d", ErrInvalidRule, r.SymbolCode, r.Days)
		}
	default:
		return fmt.Errorf("%w: %s type=%q", ErrInvalidRule, r.SymbolCode, r.Type)
	}
	return nil
}

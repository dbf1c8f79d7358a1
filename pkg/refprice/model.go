// 文件: pkg/refprice/model.go
// 每日参考价: (symbol, trade_date) -> open / close / prev_close
//
// prev_close 取同一品种上一个已确定交易日的收盘价，可能来自另一个合约 (展期)。

package refprice

import (
	"time"
)

// Record 参考价，一个 (symbol, trade_date) 一行
type Record struct {
	SymbolCode string    `gorm:"column:symbol_code;primaryKey;type:varchar(16)" json:"symbol"`
	TradeDate  time.Time `gorm:"column:trade_date;primaryKey;type:date" json:"trade_date"`
	ContractID int64     `gorm:"column:contract_id" json:"contract_id"`
	Open       *float64  `gorm:"column:price_open" json:"open"`
	Close      *float64  `gorm:"column:price_close" json:"close"`
	PrevClose  *float64  `gorm:"column:prev_close" json:"prev_close"`
}

func (Record) TableName() string {
	return "daily_reference_prices"
}

// Overnight prev_close -> open 的收益，未定义时返回 nil
func (r *Record) Overnight() *float64 {
	return ratio(r.Open, r.PrevClose)
}

// Intraday open -> close 的收益
func (r *Record) Intraday() *float64 {
	return ratio(r.Close, r.Open)
}

// ratio num/den - 1；任一缺失或分母为 0 返回 nil
func ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	v := *num / *den - 1
	return &v
}

// Candidate 有足够参考价数据的品种
type Candidate struct {
	SymbolCode string    `gorm:"column:symbol_code" json:"symbol"`
	Rows       int64     `gorm:"column:rows" json:"rows"`
	MinDate    time.Time `gorm:"column:min_date" json:"min_date"`
	MaxDate    time.Time `gorm:"column:max_date" json:"max_date"`
}

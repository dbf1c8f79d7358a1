// 文件: pkg/liquid/assignment.go
// 活跃合约映射 (symbol, trade_date) -> contract
//
// 每个键最多一条，重算时整行覆盖 (last-write-wins)

package liquid

import "time"

// Assignment 每日活跃合约
type Assignment struct {
	SymbolCode string    `gorm:"column:symbol_code;primaryKey;type:varchar(16)" json:"symbol"`
	TradeDate  time.Time `gorm:"column:trade_date;primaryKey;type:date" json:"trade_date"`
	ContractID int64     `gorm:"column:contract_id;index" json:"contract_id"`
	Volume     int64     `gorm:"column:volume" json:"volume"`
}

func (Assignment) TableName() string {
	return "liquid_contract_daily"
}

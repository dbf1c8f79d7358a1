// 文件: pkg/series/record.go
// 连续序列输出记录

package series

import (
	"errors"
	"time"

	"overnight.com/pkg/liquid"
	"overnight.com/pkg/refprice"
)

// GapReason 缺口原因，空字符串表示正常记录
type GapReason string

const (
	GapNone              GapReason = ""
	GapNoBars            GapReason = "no_bars_for_date"
	GapNoCandidate       GapReason = "no_candidate"
	GapNoEligible        GapReason = "no_eligible_contract"
	GapIncompleteSession GapReason = "incomplete_session"
)

// gapOf 单元错误 -> 缺口原因；不是单元级错误返回 false
func gapOf(err error) (GapReason, bool) {
	switch {
	case errors.Is(err, liquid.ErrNoBarsForDate):
		return GapNoBars, true
	case errors.Is(err, liquid.ErrNoCandidate):
		return GapNoCandidate, true
	case errors.Is(err, liquid.ErrNoEligibleContract):
		return GapNoEligible, true
	case errors.Is(err, refprice.ErrIncompleteSession):
		return GapIncompleteSession, true
	}
	return GapNone, false
}

// Record 连续序列中的一天
//
// 缺口记录:
//   - no_bars_for_date: 显式请求的日期整个品种没有K线
//   - no_candidate / no_eligible_contract: 没有合约，价格全空
//   - incomplete_session: 有合约，open/close 为空，prev_close 照常
type Record struct {
	Symbol     string    `json:"symbol"`
	TradeDate  time.Time `json:"trade_date"`
	ContractID int64     `json:"contract_id,omitempty"`
	Contract   string    `json:"contract,omitempty"`
	Volume     int64     `json:"volume"`
	Open       *float64  `json:"open"`
	Close      *float64  `json:"close"`
	PrevClose  *float64  `json:"prev_close"`
	Overnight  *float64  `json:"overnight_return"`
	Intraday   *float64  `json:"intraday_return"`
	Roll       bool      `json:"roll"`
	Gap        GapReason `json:"gap,omitempty"`

	missingExpiry bool
}

// IsGap 是否缺口记录
func (r *Record) IsGap() bool {
	return r.Gap != GapNone
}

// HasContract 当天确定了活跃合约 (包括会话不完整的情况)
func (r *Record) HasContract() bool {
	return r.ContractID != 0
}

// Price 对应的参考价行
func (r *Record) Price() refprice.Record {
	return refprice.Record{
		SymbolCode: r.Symbol,
		TradeDate:  r.TradeDate,
		ContractID: r.ContractID,
		Open:       r.Open,
		Close:      r.Close,
		PrevClose:  r.PrevClose,
	}
}

// Assignment 对应的活跃合约行
func (r *Record) Assignment() liquid.Assignment {
	return liquid.Assignment{
		SymbolCode: r.Symbol,
		TradeDate:  r.TradeDate,
		ContractID: r.ContractID,
		Volume:     r.Volume,
	}
}

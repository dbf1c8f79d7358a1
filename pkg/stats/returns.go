// 文件: pkg/stats/returns.go
// 从参考价推导对数收益
//
//   overnight = ln(open / prev_close)
//   intraday  = ln(close / open)，只在 prev_close 存在时计入
//   full      = overnight + intraday
//
// 隔夜再按前后交易日的星期细分:
//   weekend:  上一交易日周五，当天周一
//   business: 上一交易日周一到周四，当天是紧接着的下一个工作日
//
// 缺失值一律 NaN。

package stats

import (
	"math"
	"time"

	"overnight.com/pkg/refprice"
)

// Kind 收益序列
type Kind string

const (
	KindFull              Kind = "full"
	KindIntraday          Kind = "intraday"
	KindOvernight         Kind = "overnight"
	KindOvernightBusiness Kind = "overnight_business"
	KindOvernightWeekend  Kind = "overnight_weekend"
)

// Kinds 输出顺序
var Kinds = []Kind{KindFull, KindIntraday, KindOvernight, KindOvernightBusiness, KindOvernightWeekend}

// Title 报表列名
func (k Kind) Title() string {
	switch k {
	case KindFull:
		return "Full"
	case KindIntraday:
		return "Intraday"
	case KindOvernight:
		return "Overnight (all)"
	case KindOvernightBusiness:
		return "Overnight (business)"
	case KindOvernightWeekend:
		return "Overnight (weekend)"
	}
	return string(k)
}

// Day 一个交易日的对数收益
type Day struct {
	Date time.Time

	// Roll 与上一行的合约不同
	Roll bool

	Full      float64
	Intraday  float64
	Overnight float64
	Business  float64
	Weekend   float64
}

// Log 指定序列的对数收益
func (d *Day) Log(k Kind) float64 {
	switch k {
	case KindFull:
		return d.Full
	case KindIntraday:
		return d.Intraday
	case KindOvernight:
		return d.Overnight
	case KindOvernightBusiness:
		return d.Business
	case KindOvernightWeekend:
		return d.Weekend
	}
	return math.NaN()
}

// Simple 指定序列的简单收益
func (d *Day) Simple(k Kind) float64 {
	return math.Exp(d.Log(k)) - 1
}

// LogReturns 参考价 (按交易日升序) -> 每日对数收益
func LogReturns(recs []refprice.Record) []Day {
	out := make([]Day, len(recs))
	for i := range recs {
		r := &recs[i]
		d := Day{Date: r.TradeDate}

		d.Overnight = logRatio(r.Open, r.PrevClose)
		d.Intraday = math.NaN()
		if r.PrevClose != nil {
			d.Intraday = logRatio(r.Close, r.Open)
		}
		d.Full = d.Overnight + d.Intraday

		d.Business, d.Weekend = math.NaN(), math.NaN()
		if i > 0 {
			prev := &recs[i-1]
			d.Roll = prev.ContractID != r.ContractID
			switch {
			case isWeekend(prev.TradeDate, r.TradeDate):
				d.Weekend = d.Overnight
			case isBusiness(prev.TradeDate, r.TradeDate):
				d.Business = d.Overnight
			}
		}
		out[i] = d
	}
	return out
}

func logRatio(num, den *float64) float64 {
	if num == nil || den == nil || *den == 0 {
		return math.NaN()
	}
	return math.Log(*num / *den)
}

func isWeekend(prev, cur time.Time) bool {
	return prev.Weekday() == time.Friday && cur.Weekday() == time.Monday
}

func isBusiness(prev, cur time.Time) bool {
	p := prev.Weekday()
	return p >= time.Monday && p <= time.Thursday && cur.Weekday() == p+1
}

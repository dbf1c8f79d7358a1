// 文件: pkg/report/row.go
// 文件输出用的扁平行 (CSV / XLSX / Parquet 共用)

package report

import (
	"overnight.com/pkg/market"
	"overnight.com/pkg/series"
)

// Row 一条序列记录
type Row struct {
	Symbol     string   `json:"symbol" parquet:"symbol"`
	TradeDate  string   `json:"trade_date" parquet:"trade_date"`
	ContractID int64    `json:"contract_id" parquet:"contract_id"`
	Contract   string   `json:"contract" parquet:"contract"`
	Volume     int64    `json:"volume" parquet:"volume"`
	Open       *float64 `json:"open" parquet:"open,optional"`
	Close      *float64 `json:"close" parquet:"close,optional"`
	PrevClose  *float64 `json:"prev_close" parquet:"prev_close,optional"`
	Overnight  *float64 `json:"overnight_return" parquet:"overnight_return,optional"`
	Intraday   *float64 `json:"intraday_return" parquet:"intraday_return,optional"`
	Roll       bool     `json:"roll" parquet:"roll"`
	Gap        string   `json:"gap" parquet:"gap"`
}

// Header CSV / XLSX 表头，与 Row.cells 顺序一致
var Header = []string{
	"symbol", "trade_date", "contract_id", "contract", "volume",
	"open", "close", "prev_close", "overnight_return", "intraday_return",
	"roll", "gap",
}

// Rows series.Record -> Row
func Rows(recs []series.Record) []Row {
	out := make([]Row, len(recs))
	for i := range recs {
		r := &recs[i]
		out[i] = Row{
			Symbol:     r.Symbol,
			TradeDate:  market.FormatDate(r.TradeDate),
			ContractID: r.ContractID,
			Contract:   r.Contract,
			Volume:     r.Volume,
			Open:       r.Open,
			Close:      r.Close,
			PrevClose:  r.PrevClose,
			Overnight:  r.Overnight,
			Intraday:   r.Intraday,
			Roll:       r.Roll,
			Gap:        string(r.Gap),
		}
	}
	return out
}

// cells 单元格值，缺失为 nil
func (r *Row) cells() []any {
	return []any{
		r.Symbol, r.TradeDate, r.ContractID, r.Contract, r.Volume,
		deref(r.Open), deref(r.Close), deref(r.PrevClose), deref(r.Overnight), deref(r.Intraday),
		r.Roll, r.Gap,
	}
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// 文件: pkg/liquid/aggregator.go
// K线聚合: 品种某一交易日各合约的成交量合计
//
// - 成交量缺失按 0 计入合计，不伪造成"零成交"
// - 当天至少有一根K线的合约才是候选 (零成交量也算)
// - 纯函数部分 (AggregateDay) 与取数部分 (Aggregator) 分开，方便按 (品种, 日期) 并行

package liquid

import (
	"context"
	"fmt"
	"sort"
	"time"

	"overnight.com/pkg/market"
)

// ContractVolume 单个合约当天的成交量
type ContractVolume struct {
	ContractID int64
	Volume     int64
	Bars       int // 当天K线根数
}

// DayVolumes 品种某天的成交量映射，按 ContractID 升序
type DayVolumes struct {
	Symbol  string
	Date    time.Time
	Volumes []ContractVolume
}

// Empty 当天没有任何候选
func (d DayVolumes) Empty() bool {
	return len(d.Volumes) == 0
}

// Volume 查某个合约当天成交量
func (d DayVolumes) Volume(contractID int64) (int64, bool) {
	for _, v := range d.Volumes {
		if v.ContractID == contractID {
			return v.Volume, true
		}
	}
	return 0, false
}

// AggregateDay 把当天各合约的K线汇总成成交量映射
// barsByContract 里不属于 date 的K线会被忽略
func AggregateDay(symbol string, date time.Time, barsByContract map[int64][]market.Bar) DayVolumes {
	day := DayVolumes{Symbol: symbol, Date: date}
	for cid, bars := range barsByContract {
		cv := ContractVolume{ContractID: cid}
		for i := range bars {
			if !market.DateOf(bars[i].Timestamp).Equal(date) {
				continue
			}
			cv.Volume += bars[i].VolumeOrZero()
			cv.Bars++
		}
		if cv.Bars > 0 {
			day.Volumes = append(day.Volumes, cv)
		}
	}
	sort.Slice(day.Volumes, func(i, j int) bool {
		return day.Volumes[i].ContractID < day.Volumes[j].ContractID
	})
	return day
}

// GroupByDate 把一个合约的K线按交易日分组
func GroupByDate(bars []market.Bar) map[time.Time][]market.Bar {
	out := make(map[time.Time][]market.Bar)
	for _, b := range bars {
		day := market.DateOf(b.Timestamp)
		out[day] = append(out[day], b)
	}
	return out
}

// =============================================================================
// Aggregator - 带取数的聚合器
// =============================================================================

// Aggregator 从K线存储按需聚合单日成交量
type Aggregator struct {
	bars market.BarRepository
}

func NewAggregator(bars market.BarRepository) *Aggregator {
	return &Aggregator{bars: bars}
}

// DayBars 取合约列表在 date 当天的K线
// 首/末交易日是派生字段，可能落后于K线表，不能用来跳过合约
func (a *Aggregator) DayBars(ctx context.Context, date time.Time, contracts []market.Contract) (map[int64][]market.Bar, error) {
	next := date.AddDate(0, 0, 1)
	out := make(map[int64][]market.Bar, len(contracts))
	for i := range contracts {
		c := &contracts[i]
		bars, err := a.bars.Bars(ctx, c.ID, date, next)
		if err != nil {
			return nil, fmt.Errorf("load bars contract=%d: %w", c.ID, err)
		}
		if len(bars) > 0 {
			out[c.ID] = bars
		}
	}
	return out, nil
}

// VolumesForDate 显式请求某一天的成交量映射
// 整个品种当天一根K线都没有时返回 ErrNoBarsForDate；
// 区间扫描请用 AggregateDay，空结果是合法的"非交易日"
func (a *Aggregator) VolumesForDate(ctx context.Context, symbol string, date time.Time, contracts []market.Contract) (DayVolumes, map[int64][]market.Bar, error) {
	byContract, err := a.DayBars(ctx, date, contracts)
	if err != nil {
		return DayVolumes{}, nil, err
	}
	day := AggregateDay(symbol, date, byContract)
	if day.Empty() {
		return day, nil, fmt.Errorf("%w: %s %s", ErrNoBarsForDate, symbol, market.FormatDate(date))
	}
	return day, byContract, nil
}

// RangeBars 区间 [from, to) 内的K线，按 交易日 -> 合约 分组
// 批处理按块取数用，每个合约一次查询 (同 DayBars，不按首/末交易日剪枝)
func (a *Aggregator) RangeBars(ctx context.Context, from, to time.Time, contracts []market.Contract) (map[time.Time]map[int64][]market.Bar, error) {
	out := make(map[time.Time]map[int64][]market.Bar)
	for i := range contracts {
		c := &contracts[i]
		bars, err := a.bars.Bars(ctx, c.ID, from, to)
		if err != nil {
			return nil, fmt.Errorf("load bars contract=%d: %w", c.ID, err)
		}
		for day, dayBars := range GroupByDate(bars) {
			if out[day] == nil {
				out[day] = make(map[int64][]market.Bar)
			}
			out[day][c.ID] = dayBars
		}
	}
	return out, nil
}

// 文件: pkg/series/options.go
// 一次构建的全部参数
//
// Options 是值类型，构建开始后不再修改，多个构建可以用不同的 Options 并发跑
// (例如 watch 模式里单品种的增量重算和夜间全量重算)。

package series

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"overnight.com/pkg/liquid"
	"overnight.com/pkg/market"
	"overnight.com/pkg/refprice"
)

// ErrConfig 配置错误，在任何计算开始前返回
var ErrConfig = errors.New("configuration error")

const (
	DefaultWorkers      = 4
	DefaultChunkDays    = 90
	DefaultLookbackDays = 10
)

// Options 构建参数
type Options struct {
	// Symbols 为空表示全部品种
	Symbols []string

	// Start / End 交易日闭区间
	Start time.Time
	End   time.Time

	Workers   int
	ChunkDays int

	// LookbackDays Start 之前多算的天数，只用来确定第一天的 prev_close，不输出不写库
	LookbackDays int

	Session    refprice.Session
	Filters    liquid.Filters
	OpenWindow Window

	// Rules 本次运行覆盖的展期规则，优先于库里的规则
	Rules []market.RolloverRule

	// DryRun 只算不写
	DryRun bool

	// Explicit 显式请求的交易日 (watch 事件里点名的日期)
	// 当天整个品种没有K线时输出 no_bars_for_date 缺口，而不是当作非交易日跳过。
	// Start == End 时 Start 自动算显式请求。
	Explicit []time.Time
}

// withDefaults 返回补齐默认值的副本
func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.ChunkDays <= 0 {
		o.ChunkDays = DefaultChunkDays
	}
	if o.LookbackDays < 0 {
		o.LookbackDays = 0
	}
	o.Start = market.DateOf(o.Start)
	o.End = market.DateOf(o.End)

	explicit := make([]time.Time, 0, len(o.Explicit)+1)
	seen := make(map[time.Time]bool, len(o.Explicit)+1)
	add := func(d time.Time) {
		d = market.DateOf(d)
		if d.Before(o.Start) || d.After(o.End) || seen[d] {
			return
		}
		seen[d] = true
		explicit = append(explicit, d)
	}
	if o.Start.Equal(o.End) {
		add(o.Start)
	}
	for _, d := range o.Explicit {
		add(d)
	}
	sort.Slice(explicit, func(i, j int) bool { return explicit[i].Before(explicit[j]) })
	o.Explicit = explicit
	return o
}

// explicitIn [from, to) 内的显式日期
func (o *Options) explicitIn(from, to time.Time) []time.Time {
	var out []time.Time
	for _, d := range o.Explicit {
		if !d.Before(from) && d.Before(to) {
			out = append(out, d)
		}
	}
	return out
}

// Validate 日期区间和覆盖规则
func (o Options) Validate() error {
	if o.Start.IsZero() || o.End.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrConfig)
	}
	if o.End.Before(o.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrConfig, market.FormatDate(o.End), market.FormatDate(o.Start))
	}
	for i := range o.Rules {
		if !o.Rules[i].HasPolicy() {
			continue
		}
		if err := o.Rules[i].Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}
	return nil
}

// =============================================================================
// Window - 开盘时段过滤
// =============================================================================

// Window [start, end) 墙上时钟分钟数；零值表示不过滤
type Window struct {
	start, end int
	set        bool
}

// NewWindow start/end 都为空返回零值
func NewWindow(start, end string) (Window, error) {
	if start == "" && end == "" {
		return Window{}, nil
	}
	s, err := market.ParseClock(start)
	if err != nil {
		return Window{}, fmt.Errorf("%w: open window: %w", ErrConfig, err)
	}
	e, err := market.ParseClock(end)
	if err != nil {
		return Window{}, fmt.Errorf("%w: open window: %w", ErrConfig, err)
	}
	if e <= s {
		return Window{}, fmt.Errorf("%w: open window %s-%s is empty", ErrConfig, start, end)
	}
	return Window{start: s, end: e, set: true}, nil
}

// Trading 当天是否有任意合约的K线开始于窗口内
// 没有设置窗口时恒为 true
func (w Window) Trading(dayBars map[int64][]market.Bar) bool {
	if !w.set {
		return true
	}
	for _, bars := range dayBars {
		for i := range bars {
			m := market.MinuteOfDay(bars[i].Timestamp)
			if m >= w.start && m < w.end {
				return true
			}
		}
	}
	return false
}

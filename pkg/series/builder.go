// 文件: pkg/series/builder.go
// 连续序列构建
//
// 【流程】每个品种:
//   1. 按块 (ChunkDays) 取全部合约的K线，按交易日分组
//      显式请求但没有K线的日期输出 no_bars_for_date 缺口
//   2. 每个交易日: 成交量聚合 -> 规则约束下排序 -> 会话开/收盘 -> prev_close 链
//   3. 每天一个单元原子写入 (活跃合约 + 参考价)
//
// 【并发】品种之间并行 (errgroup + SetLimit)，品种内部按交易日串行折叠。
// 输出按 (symbol, trade_date) 升序。
//
// 【重跑】计算只依赖输入K线和配置，不读上次的结果:
// Start 之前回看 LookbackDays 找到上一个已确定交易日作为链的起点，
// 找不到就逐步扩大回看窗口 (最多 maxLookbackDays)。

package series

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"overnight.com/pkg/liquid"
	"overnight.com/pkg/market"
	"overnight.com/pkg/refprice"
)

const maxLookbackDays = 366

// SymbolSummary 单个品种的构建结果
type SymbolSummary struct {
	Symbol        string            `json:"symbol"`
	Days          int               `json:"days"`
	Resolved      int               `json:"resolved"`
	Rolls         int               `json:"rolls"`
	Gaps          map[GapReason]int `json:"gaps,omitempty"`
	MissingExpiry int               `json:"missing_expiry_days"`
	NoRule        bool              `json:"no_rule"`
	First         time.Time         `json:"first,omitempty"`
	Last          time.Time         `json:"last,omitempty"`
}

// Result 一次构建的输出
type Result struct {
	RunID     int64
	Start     time.Time
	End       time.Time
	DryRun    bool
	Records   []Record
	Summaries []SymbolSummary
}

// GapCount 缺口记录数
func (r *Result) GapCount() int {
	n := 0
	for i := range r.Records {
		if r.Records[i].IsGap() {
			n++
		}
	}
	return n
}

// =============================================================================
// Builder
// =============================================================================

// Builder 无状态，可以并发执行多个 Build
type Builder struct {
	contracts market.ContractRepository
	bars      market.BarRepository
	rules     market.RuleRepository
	writer    UnitWriter
	notifier  Notifier
	metrics   *Metrics
	log       *zap.Logger
}

// NewBuilder writer 为 nil 时不写库
func NewBuilder(contracts market.ContractRepository, bars market.BarRepository, rules market.RuleRepository, writer UnitWriter, logger *zap.Logger) *Builder {
	if writer == nil {
		writer = nopWriter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		contracts: contracts,
		bars:      bars,
		rules:     rules,
		writer:    writer,
		log:       logger.Named("builder"),
	}
}

// WithMetrics 挂上指标
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.metrics = m
	return b
}

// WithNotifier 品种构建完成后发事件
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// Build 构建 [Start, End] 的连续序列
//
// 配置错误 (未知品种、日期区间非法、规则非法) 在计算前返回，包装 ErrConfig；
// 单元级失败记成缺口记录，不中断批处理；
// ctx 取消时在单元之间停下，已写入的单元保持完整。
func (b *Builder) Build(ctx context.Context, opts Options) (res *Result, err error) {
	defer func() { b.metrics.observeBuild(err) }()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	symbols, err := b.resolveSymbols(ctx, opts.Symbols)
	if err != nil {
		return nil, err
	}
	rules, err := b.effectiveRules(ctx, opts.Rules)
	if err != nil {
		return nil, err
	}

	writer := b.writer
	if opts.DryRun {
		writer = nopWriter{}
	}

	runID := NewRunID()
	log := b.log.With(zap.Int64("run_id", runID))
	log.Info("build started",
		zap.Strings("symbols", symbols),
		zap.String("start", market.FormatDate(opts.Start)),
		zap.String("end", market.FormatDate(opts.End)),
		zap.Int("workers", opts.Workers),
		zap.Stringer("session", opts.Session),
		zap.Bool("dry_run", opts.DryRun),
	)

	records := make([][]Record, len(symbols))
	summaries := make([]SymbolSummary, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, sym := range symbols {
		var rule *market.RolloverRule
		if r, ok := rules[sym]; ok {
			rule = &r
		}
		g.Go(func() error {
			run := &symbolRun{
				symbol: sym,
				opts:   &opts,
				policy: liquid.NewPolicy(rule),
				agg:    liquid.NewAggregator(b.bars),
				writer: writer,
				log:    log.With(zap.String("symbol", sym)),
				metric: b.metrics,
			}
			started := time.Now()
			recs, err := run.build(gctx, b.contracts)
			if err != nil {
				return fmt.Errorf("build %s: %w", sym, err)
			}
			b.metrics.observeSymbol(sym, time.Since(started).Seconds())

			records[i] = recs
			summaries[i] = run.summary
			run.log.Info("symbol built",
				zap.Int("days", run.summary.Days),
				zap.Int("resolved", run.summary.Resolved),
				zap.Int("rolls", run.summary.Rolls),
				zap.Any("gaps", run.summary.Gaps),
				zap.Bool("no_rule", run.summary.NoRule),
			)
			if b.notifier != nil && !opts.DryRun {
				b.notifier.SymbolBuilt(gctx, runID, run.summary)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Warn("build cancelled", zap.Error(err))
		} else {
			log.Error("build failed", zap.Error(err))
		}
		return nil, err
	}

	res = &Result{RunID: runID, Start: opts.Start, End: opts.End, DryRun: opts.DryRun, Summaries: summaries}
	for _, recs := range records {
		res.Records = append(res.Records, recs...)
	}
	log.Info("build finished", zap.Int("records", len(res.Records)), zap.Int("gaps", res.GapCount()))
	return res, nil
}

// resolveSymbols 去重、排序；未知品种是配置错误
func (b *Builder) resolveSymbols(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) == 0 {
		syms, err := b.contracts.Symbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("list symbols: %w", err)
		}
		out := make([]string, 0, len(syms))
		for _, s := range syms {
			out = append(out, s.Code)
		}
		sort.Strings(out)
		return out, nil
	}

	seen := make(map[string]bool, len(requested))
	out := make([]string, 0, len(requested))
	for _, code := range requested {
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		if _, err := b.contracts.GetSymbol(ctx, code); err != nil {
			if errors.Is(err, market.ErrUnknownSymbol) {
				return nil, fmt.Errorf("%w: %w: %s", ErrConfig, market.ErrUnknownSymbol, code)
			}
			return nil, fmt.Errorf("lookup symbol %s: %w", code, err)
		}
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

// effectiveRules 库里的规则 + 本次运行的覆盖
func (b *Builder) effectiveRules(ctx context.Context, overrides []market.RolloverRule) (map[string]market.RolloverRule, error) {
	base := map[string]market.RolloverRule{}
	if b.rules != nil {
		var err error
		if base, err = b.rules.Rules(ctx); err != nil {
			return nil, fmt.Errorf("load rollover rules: %w", err)
		}
	}
	merged := market.MergeRules(base, overrides)
	for code, r := range merged {
		if !r.HasPolicy() {
			continue
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("%w: rule for %s: %w", ErrConfig, code, err)
		}
	}
	return merged, nil
}

// =============================================================================
// symbolRun - 单个品种
// =============================================================================

type symbolRun struct {
	symbol string
	opts   *Options
	policy liquid.Policy
	agg    *liquid.Aggregator
	writer UnitWriter
	log    *zap.Logger
	metric *Metrics

	contracts []market.Contract
	byID      map[int64]*market.Contract
	summary   SymbolSummary
}

func (r *symbolRun) build(ctx context.Context, repo market.ContractRepository) ([]Record, error) {
	contracts, err := repo.ContractsBySymbol(ctx, r.symbol)
	if err != nil {
		return nil, fmt.Errorf("load contracts: %w", err)
	}
	r.contracts = contracts
	r.byID = make(map[int64]*market.Contract, len(contracts))
	for i := range contracts {
		r.byID[contracts[i].ID] = &r.contracts[i]
	}
	r.summary = SymbolSummary{Symbol: r.symbol, Gaps: map[GapReason]int{}, NoRule: r.policy.Rule() == nil}

	if r.summary.NoRule {
		r.log.Debug("no rollover rule, resolving by volume only")
	}

	chain, err := r.seed(ctx)
	if err != nil {
		return nil, err
	}

	var out []Record
	err = r.walk(ctx, r.opts.Start, r.opts.End, chain, func(rec *Record) error {
		if err := r.writer.WriteUnit(ctx, rec); err != nil {
			return err
		}
		r.count(rec)
		out = append(out, *rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// seed Start 之前最近一个已确定交易日的链状态
func (r *symbolRun) seed(ctx context.Context) (*refprice.Chain, error) {
	end := r.opts.Start.AddDate(0, 0, -1)
	for days := r.opts.LookbackDays; days > 0; days *= 2 {
		if days > maxLookbackDays {
			days = maxLookbackDays
		}
		chain := &refprice.Chain{}
		if err := r.walk(ctx, r.opts.Start.AddDate(0, 0, -days), end, chain, nil); err != nil {
			return nil, err
		}
		if last, _ := chain.Last(); !last.IsZero() || days == maxLookbackDays {
			return chain, nil
		}
	}
	return &refprice.Chain{}, nil
}

// walk 按块遍历 [from, to] 的交易日，emit 为 nil 时只推进链
func (r *symbolRun) walk(ctx context.Context, from, to time.Time, chain *refprice.Chain, emit func(*Record) error) error {
	stop := to.AddDate(0, 0, 1)
	for start := from; start.Before(stop); {
		end := start.AddDate(0, 0, r.opts.ChunkDays)
		if end.After(stop) {
			end = stop
		}

		byDate, err := r.agg.RangeBars(ctx, start, end, r.contracts)
		if err != nil {
			return err
		}
		// 回看阶段不输出，也就不需要缺口
		var noBars map[time.Time]error
		if emit != nil {
			if noBars, err = r.explicitDays(ctx, start, end, byDate); err != nil {
				return err
			}
		}

		dates := make([]time.Time, 0, len(byDate)+len(noBars))
		for d := range byDate {
			dates = append(dates, d)
		}
		for d := range noBars {
			dates = append(dates, d)
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

		for _, d := range dates {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			if cause, ok := noBars[d]; ok {
				rec = Record{Symbol: r.symbol, TradeDate: d, Gap: GapNoBars}
				r.log.Debug("gap", zap.Time("date", d), zap.String("reason", string(rec.Gap)), zap.Error(cause))
			} else {
				dayBars := byDate[d]
				if !r.opts.OpenWindow.Trading(dayBars) {
					continue
				}
				if rec, err = r.resolve(d, dayBars, chain); err != nil {
					return err
				}
			}
			if emit != nil {
				if err := emit(&rec); err != nil {
					return err
				}
			}
		}
		start = end
	}
	return nil
}

// explicitDays 块内显式请求、区间扫描没取到K线的日期，逐个按单日再查一次
// 查到了并入 byDate，仍然没有的返回 (日期 -> ErrNoBarsForDate)
func (r *symbolRun) explicitDays(ctx context.Context, from, to time.Time, byDate map[time.Time]map[int64][]market.Bar) (map[time.Time]error, error) {
	var missing map[time.Time]error
	for _, d := range r.opts.explicitIn(from, to) {
		if _, ok := byDate[d]; ok {
			continue
		}
		_, bars, err := r.agg.VolumesForDate(ctx, r.symbol, d, r.contracts)
		switch {
		case err == nil:
			byDate[d] = bars
		case errors.Is(err, liquid.ErrNoBarsForDate):
			if missing == nil {
				missing = make(map[time.Time]error)
			}
			missing[d] = err
		default:
			return nil, err
		}
	}
	return missing, nil
}

// resolve 单个交易日
func (r *symbolRun) resolve(date time.Time, dayBars map[int64][]market.Bar, chain *refprice.Chain) (Record, error) {
	rec := Record{Symbol: r.symbol, TradeDate: date}

	day := liquid.AggregateDay(r.symbol, date, dayBars)
	sel, err := r.policy.Select(day, r.byID, r.opts.Filters)
	if err != nil {
		gap, ok := gapOf(err)
		if !ok {
			return rec, fmt.Errorf("select %s: %w", market.FormatDate(date), err)
		}
		rec.Gap = gap
		r.log.Debug("gap", zap.Time("date", date), zap.String("reason", string(gap)))
		return rec, nil
	}

	rec.ContractID = sel.ContractID
	rec.Volume = sel.Volume
	if c := r.byID[sel.ContractID]; c != nil {
		rec.Contract = c.Code()
	}
	rec.missingExpiry = len(sel.MissingExpiry) > 0
	if sel.Overridden {
		r.log.Debug("rollover rule excluded top contract",
			zap.Time("date", date),
			zap.Int64("top", sel.TopContractID),
			zap.Int64("chosen", sel.ContractID),
		)
	}

	var closePx *float64
	open, cl, err := r.opts.Session.Resolve(dayBars[sel.ContractID])
	if err != nil {
		rec.Gap = GapIncompleteSession
		r.log.Debug("gap", zap.Time("date", date), zap.String("reason", string(rec.Gap)), zap.Error(err))
	} else {
		rec.Open, rec.Close = &open, &cl
		closePx = rec.Close
	}

	link := chain.Advance(date, sel.ContractID, closePx)
	rec.PrevClose = link.PrevClose
	rec.Roll = link.Roll

	price := rec.Price()
	rec.Overnight = price.Overnight()
	rec.Intraday = price.Intraday()
	return rec, nil
}

func (r *symbolRun) count(rec *Record) {
	s := &r.summary
	s.Days++
	if s.First.IsZero() {
		s.First = rec.TradeDate
	}
	s.Last = rec.TradeDate
	if rec.IsGap() {
		s.Gaps[rec.Gap]++
	} else {
		s.Resolved++
	}
	if rec.Roll {
		s.Rolls++
	}
	if rec.missingExpiry {
		s.MissingExpiry++
	}
	r.metric.observeUnit(r.symbol, rec)
}

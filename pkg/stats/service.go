// 文件: pkg/stats/service.go
// 统计服务: 从参考价存储读取，计算汇总和分桶指标

package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"overnight.com/pkg/market"
	"overnight.com/pkg/refprice"
)

// ErrNoData 区间内没有参考价
var ErrNoData = errors.New("no reference prices")

// Report 单个品种的统计结果
type Report struct {
	Symbol      string
	Description string
	From        time.Time
	To          time.Time
	Days        []Day
	Summaries   []Summary
	Buckets     []Row
	Aggregate   *AggregateOptions
}

// Title 报表标题
func (r *Report) Title() string {
	return fmt.Sprintf("%s (%s) stats", r.Description, r.Symbol)
}

// Service 统计服务
type Service struct {
	prices  refprice.Store
	symbols market.ContractRepository
	rules   market.RuleRepository
	log     *zap.Logger
}

// NewService symbols 可以为 nil (描述退化为代码)
func NewService(prices refprice.Store, symbols market.ContractRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{prices: prices, symbols: symbols, log: logger.Named("stats")}
}

// WithRules 品种没有描述 (或描述就是代码) 时用展期规则里的描述
func (s *Service) WithRules(rules market.RuleRepository) *Service {
	s.rules = rules
	return s
}

// Report from/to 为零值时取已有数据的首尾；agg 为 nil 不做分桶
func (s *Service) Report(ctx context.Context, symbol string, from, to time.Time, agg *AggregateOptions) (*Report, error) {
	if from.IsZero() || to.IsZero() {
		lo, hi, err := s.prices.Bounds(ctx, symbol)
		if errors.Is(err, refprice.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
		}
		if err != nil {
			return nil, err
		}
		if from.IsZero() {
			from = lo
		}
		if to.IsZero() {
			to = hi
		}
	}

	recs, err := s.prices.Range(ctx, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("load reference prices %s: %w", symbol, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s %s..%s", ErrNoData, symbol, market.FormatDate(from), market.FormatDate(to))
	}

	rep := &Report{
		Symbol:      symbol,
		Description: s.describe(ctx, symbol),
		From:        from,
		To:          to,
		Days:        LogReturns(recs),
	}
	rep.Summaries = SummarizeAll(rep.Days)
	if agg != nil {
		rep.Aggregate = agg
		rep.Buckets = Aggregate(rep.Days, *agg)
	}

	s.log.Debug("report",
		zap.String("symbol", symbol),
		zap.Int("rows", len(recs)),
		zap.String("from", market.FormatDate(from)),
		zap.String("to", market.FormatDate(to)),
	)
	return rep, nil
}

// Candidates 数据量足够的品种
func (s *Service) Candidates(ctx context.Context, minRows int64) ([]refprice.Candidate, error) {
	return s.prices.Candidates(ctx, minRows)
}

func (s *Service) describe(ctx context.Context, symbol string) string {
	if s.symbols != nil {
		if sym, err := s.symbols.GetSymbol(ctx, symbol); err == nil && sym.Description != "" && sym.Description != symbol {
			return sym.Description
		}
	}
	// contracts register 建品种时描述填的是代码
	if s.rules != nil {
		rules, err := s.rules.Rules(ctx)
		if err != nil {
			s.log.Warn("load rollover rules", zap.Error(err))
		} else if r, ok := rules[symbol]; ok && r.Description != "" {
			return r.Description
		}
	}
	return symbol
}

package stats

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overnight.com/pkg/market"
	"overnight.com/pkg/refprice"
)

func f(v float64) *float64 { return &v }

func d(s string) time.Time {
	t, err := market.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// 周四、周五、(周末)、周一换合约、周二
func sample() []refprice.Record {
	return []refprice.Record{
		{SymbolCode: "ES", TradeDate: d("2024-03-14"), ContractID: 1, Open: f(100), Close: f(101)},
		{SymbolCode: "ES", TradeDate: d("2024-03-15"), ContractID: 1, Open: f(102), Close: f(103), PrevClose: f(101)},
		{SymbolCode: "ES", TradeDate: d("2024-03-18"), ContractID: 2, Open: f(103), Close: f(104), PrevClose: f(103)},
		{SymbolCode: "ES", TradeDate: d("2024-03-19"), ContractID: 2, Open: f(104), Close: f(105), PrevClose: f(104)},
	}
}

func TestLogReturns(t *testing.T) {
	days := LogReturns(sample())
	require.Len(t, days, 4)

	// 第一天没有 prev_close: 隔夜和日内都不计
	assert.True(t, math.IsNaN(days[0].Overnight))
	assert.True(t, math.IsNaN(days[0].Intraday))
	assert.True(t, math.IsNaN(days[0].Full))

	assert.InDelta(t, math.Log(102.0/101), days[1].Overnight, 1e-12)
	assert.InDelta(t, math.Log(103.0/102), days[1].Intraday, 1e-12)
	assert.InDelta(t, math.Log(103.0/101), days[1].Full, 1e-12)
	assert.Equal(t, days[1].Overnight, days[1].Business)
	assert.True(t, math.IsNaN(days[1].Weekend))

	assert.True(t, days[2].Roll)
	assert.Equal(t, days[2].Overnight, days[2].Weekend)
	assert.True(t, math.IsNaN(days[2].Business))

	assert.False(t, days[3].Roll)
	assert.False(t, math.IsNaN(days[3].Business))
}

func TestLogReturns_HolidayIsNeitherBusinessNorWeekend(t *testing.T) {
	recs := []refprice.Record{
		{TradeDate: d("2024-03-27"), Open: f(1), Close: f(1)},                  // 周三
		{TradeDate: d("2024-04-01"), Open: f(1), Close: f(1), PrevClose: f(1)}, // 周一 (跳过周五)
	}
	days := LogReturns(recs)
	assert.True(t, math.IsNaN(days[1].Business))
	assert.True(t, math.IsNaN(days[1].Weekend))
	assert.Equal(t, 0.0, days[1].Overnight)
}

func TestSummarize(t *testing.T) {
	days := LogReturns(sample())

	full := Summarize(days, KindFull)
	assert.Equal(t, 3, full.N)
	assert.InDelta(t, 105.0/101, full.FinalValue, 1e-12)
	assert.InDelta(t, (math.Pow(105.0/101, 252.0/3)-1)*100, full.AnnualMeanPct, 1e-6)
	assert.False(t, math.IsNaN(full.Sharpe))

	// 只有一个样本: 波动为 0，夏普未定义
	weekend := Summarize(days, KindOvernightWeekend)
	assert.Equal(t, 1, weekend.N)
	assert.Equal(t, 0.0, weekend.AnnualStdPct)
	assert.True(t, math.IsNaN(weekend.Sharpe))

	empty := Summarize(days[:1], KindIntraday)
	assert.Equal(t, 0, empty.N)
	assert.True(t, math.IsNaN(empty.FinalValue))

	all := SummarizeAll(days)
	require.Len(t, all, len(Kinds))
	assert.Len(t, all[0].Values(), len(SummaryRows))
}

func TestCumulative(t *testing.T) {
	days := LogReturns(sample())
	cum := Cumulative(days, KindFull)

	require.Len(t, cum, 4)
	assert.Equal(t, 1.0, cum[0])
	assert.InDelta(t, 103.0/101, cum[1], 1e-12)
	assert.InDelta(t, 105.0/101, cum[3], 1e-12)
}

func TestPercentile(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	assert.Equal(t, 2.5, percentile(xs, 50))
	assert.InDelta(t, 3.85, percentile(xs, 95), 1e-12)
	assert.Equal(t, 1.0, percentile(xs, 0))
	assert.Equal(t, 4.0, percentile(xs, 100))
	assert.True(t, math.IsNaN(percentile(nil, 50)))
}

func TestParse(t *testing.T) {
	ms, err := ParseMetrics("mean, median,std,p95,count")
	require.NoError(t, err)
	require.Len(t, ms, 5)
	assert.Equal(t, "p95", ms[3].Name)

	for _, bad := range []string{"", "avg", "p101", "px"} {
		_, err := ParseMetrics(bad)
		assert.ErrorIs(t, err, ErrInvalidMetric, bad)
	}

	b, err := ParseBucket("")
	require.NoError(t, err)
	assert.Equal(t, BucketAll, b)
	_, err = ParseBucket("year")
	assert.ErrorIs(t, err, ErrInvalidMetric)
}

func TestAggregate_WeeklyWithMinSamples(t *testing.T) {
	days := LogReturns(sample())
	ms, err := ParseMetrics("mean,count")
	require.NoError(t, err)

	rows := Aggregate(days, AggregateOptions{Kind: KindOvernight, Bucket: BucketWeek, Metrics: ms, MinSamples: 2})
	require.Len(t, rows, 2)

	assert.Equal(t, "2024-W11", rows[0].Key)
	assert.Equal(t, d("2024-03-11"), rows[0].Start)
	assert.Equal(t, 1, rows[0].N)
	assert.True(t, math.IsNaN(rows[0].Values[0]))
	assert.Equal(t, 1.0, rows[0].Values[1])

	assert.Equal(t, "2024-W12", rows[1].Key)
	assert.Equal(t, 2, rows[1].N)
	assert.InDelta(t, 0.0, rows[1].Values[0], 1e-12)

	rows = Aggregate(days, AggregateOptions{Kind: KindOvernight, Bucket: BucketWeek, Metrics: ms, ExcludeRolls: true})
	assert.Equal(t, 1, rows[1].N)
}

func TestAggregate_AllAndMonth(t *testing.T) {
	days := LogReturns(sample())
	ms, _ := ParseMetrics("median,std,count")

	rows := Aggregate(days, AggregateOptions{Kind: KindIntraday, Bucket: BucketAll, Metrics: ms, MinSamples: 1})
	require.Len(t, rows, 1)
	assert.Equal(t, "all", rows[0].Key)
	assert.Equal(t, 3.0, rows[0].Values[2])

	rows = Aggregate(days, AggregateOptions{Kind: KindIntraday, Bucket: BucketMonth, Metrics: ms})
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-03", rows[0].Key)
}

func TestService_Report(t *testing.T) {
	ctx := context.Background()
	store := refprice.NewMemoryStore()
	require.NoError(t, store.Upsert(ctx, sample()...))

	repo := market.NewMemoryRepository()
	require.NoError(t, repo.EnsureSymbol(ctx, &market.Symbol{Code: "ES", Description: "E-mini S&P 500"}))

	svc := NewService(store, repo, nil)
	ms, _ := ParseMetrics("mean,count")
	rep, err := svc.Report(ctx, "ES", time.Time{}, time.Time{}, &AggregateOptions{Kind: KindOvernight, Bucket: BucketDay, Metrics: ms})
	require.NoError(t, err)

	assert.Equal(t, d("2024-03-14"), rep.From)
	assert.Equal(t, d("2024-03-19"), rep.To)
	assert.Len(t, rep.Days, 4)
	assert.Len(t, rep.Summaries, len(Kinds))
	assert.Len(t, rep.Buckets, 4)
	assert.Equal(t, "E-mini S&P 500 (ES) stats", rep.Title())

	_, err = svc.Report(ctx, "NQ", time.Time{}, time.Time{}, nil)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = svc.Report(ctx, "ES", d("2020-01-01"), d("2020-02-01"), nil)
	assert.ErrorIs(t, err, ErrNoData)

	cands, err := svc.Candidates(ctx, 4)
	require.NoError(t, err)
	require.Len(t, cands, 1)
}

func TestService_DescriptionFromRule(t *testing.T) {
	ctx := context.Background()
	store := refprice.NewMemoryStore()
	require.NoError(t, store.Upsert(ctx, sample()...))

	// 注册合约时品种描述就是代码
	repo := market.NewMemoryRepository()
	repo.AddContract(market.Contract{SymbolCode: "ES", MonthCode: "H", Year: 2024})

	rep, err := NewService(store, repo, nil).Report(ctx, "ES", time.Time{}, time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ES", rep.Description)

	repo.SetRule(market.RolloverRule{SymbolCode: "ES", Type: market.RuleOnExpiry, Description: "E-mini S&P 500"})
	rep, err = NewService(store, repo, nil).WithRules(repo).Report(ctx, "ES", time.Time{}, time.Time{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "E-mini S&P 500", rep.Description)

	// 品种自己有描述时优先
	require.NoError(t, repo.EnsureSymbol(ctx, &market.Symbol{Code: "NQ", Description: "E-mini Nasdaq-100"}))
	repo.SetRule(market.RolloverRule{SymbolCode: "NQ", Type: market.RuleOnExpiry, Description: "Nasdaq"})
	svc := NewService(store, repo, nil).WithRules(repo)
	assert.Equal(t, "E-mini Nasdaq-100", svc.describe(ctx, "NQ"))
	assert.Equal(t, "CL", svc.describe(ctx, "CL"))
}

package market

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

// =============================================================================
// 文件名解析
// =============================================================================

func TestParseContractFilename(t *testing.T) {
	cases := []struct {
		name string
		want ParsedName
		ok   bool
	}{
		{"ADF18.csv", ParsedName{"AD", "F", 2018}, true},
		{"ESH24.txt", ParsedName{"ES", "H", 2024}, true},
		{`C:\data\5min\NQZ99.txt`, ParsedName{"NQ", "Z", 2099}, true},
		{"CONTINUOUS", ParsedName{}, false},
		{"ES.txt", ParsedName{}, false},
		{"ESA24.txt", ParsedName{}, false}, // A 不是月份代码
		{"ESH2X.txt", ParsedName{}, false},
		{"H24.txt", ParsedName{}, false}, // 没有品种
	}
	for _, c := range cases {
		got, ok := ParseContractFilename(strings.ReplaceAll(c.name, `\`, "/"))
		assert.Equal(t, c.ok, ok, c.name)
		assert.Equal(t, c.want, got, c.name)
	}
}

func TestMonthOf(t *testing.T) {
	assert.Equal(t, 1, MonthOf("F"))
	assert.Equal(t, 3, MonthOf("H"))
	assert.Equal(t, 12, MonthOf("Z"))
	assert.Equal(t, 0, MonthOf("A"))
	assert.Equal(t, 0, MonthOf(""))
}

// =============================================================================
// 日期
// =============================================================================

func TestLastDayOfPriorMonth(t *testing.T) {
	assert.Equal(t, d("2024-02-29"), LastDayOfPriorMonth(d("2024-03-31")))
	assert.Equal(t, d("2023-12-31"), LastDayOfPriorMonth(d("2024-01-15")))
	assert.Equal(t, d("2024-03-31"), LastDayOfMonth(d("2024-03-01")))
}

func TestDateOfDropsClock(t *testing.T) {
	assert.Equal(t, d("2024-03-15"), DateOf(ts("2024-03-15 16:55")))
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, m)

	_, err = ParseClock("9h30")
	require.Error(t, err)
}

// =============================================================================
// 展期规则文件
// =============================================================================

func TestParseRules(t *testing.T) {
	src := `Symbol,Description,RolloverDays,RolloverType
ES,E-mini S&P 500,8,before expiry

CL,Crude Oil,3,From end of prior month
GC,Gold,x,on_expiry
ZN,10Y Note,,
`
	rules, err := ParseRules(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, rules, 4)

	assert.Equal(t, RolloverRule{SymbolCode: "ES", Description: "E-mini S&P 500", Days: 8, Type: RuleBeforeExpiry}, rules[0])
	assert.Equal(t, RuleFromPriorMonthEnd, rules[1].Type)
	assert.Equal(t, 3, rules[1].Days)
	// 天数解析失败按 0
	assert.Equal(t, RolloverRule{SymbolCode: "GC", Description: "Gold", Days: 0, Type: RuleOnExpiry}, rules[2])
	// 类型为空 = 无规则
	assert.False(t, rules[3].HasPolicy())
}

func TestParseRules_UnknownType(t *testing.T) {
	_, err := ParseRules(strings.NewReader("ES,desc,2,next quarter\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRule))
}

func TestParseRules_NegativeDays(t *testing.T) {
	_, err := ParseRules(strings.NewReader("ES,desc,-2,before_expiry\n"))
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestLoadRulesFile_Missing(t *testing.T) {
	_, err := LoadRulesFile("/nonexistent/rules.csv")
	assert.ErrorIs(t, err, ErrInvalidRuleFile)
}

func TestMergeRules(t *testing.T) {
	base := map[string]RolloverRule{
		"ES": {SymbolCode: "ES", Days: 8, Type: RuleBeforeExpiry},
		"CL": {SymbolCode: "CL", Days: 3, Type: RuleFromPriorMonthEnd},
	}
	merged := MergeRules(base, []RolloverRule{
		{SymbolCode: "ES", Days: 2, Type: RuleBeforeExpiry},
		{SymbolCode: "CL"},
	})

	assert.Equal(t, 2, merged["ES"].Days)
	cl := merged["CL"]
	assert.False(t, cl.HasPolicy())
	// 入参不变
	assert.Equal(t, 8, base["ES"].Days)
}

// =============================================================================
// 内存存储
// =============================================================================

func TestMemoryRepository_RefreshTradeDates(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a := repo.AddContract(Contract{SymbolCode: "ES", MonthCode: "H", Year: 2024, SourceFile: "ESH24.txt"})
	b := repo.AddContract(Contract{SymbolCode: "ES", MonthCode: "M", Year: 2024, SourceFile: "ESM24.txt"})

	vol := int64(10)
	repo.AddBars(
		Bar{ContractID: a.ID, Timestamp: ts("2024-03-01 09:30"), Volume: &vol},
		Bar{ContractID: a.ID, Timestamp: ts("2024-03-04 15:55")},
	)

	n, err := repo.RefreshTradeDates(ctx, "ES")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	contracts, err := repo.ContractsBySymbol(ctx, "ES")
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, d("2024-03-01"), *contracts[0].FirstTradeDate)
	assert.Equal(t, d("2024-03-04"), *contracts[0].LastTradeDate)
	// 没有K线的合约保持 NULL
	assert.Equal(t, b.ID, contracts[1].ID)
	assert.Nil(t, contracts[1].FirstTradeDate)
	assert.Nil(t, contracts[1].LastTradeDate)
}

func TestMemoryRepository_EnsureContractIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	c1 := &Contract{SymbolCode: "ES", MonthCode: "H", Year: 2024, SourceFile: "ESH24.txt"}
	require.NoError(t, repo.EnsureContract(ctx, c1))
	c2 := &Contract{SymbolCode: "ES", MonthCode: "H", Year: 2024, SourceFile: "ESH24.txt"}
	require.NoError(t, repo.EnsureContract(ctx, c2))

	assert.Equal(t, c1.ID, c2.ID)
	contracts, _ := repo.ContractsBySymbol(ctx, "ES")
	assert.Len(t, contracts, 1)
}

func TestMemoryRepository_BarsHalfOpen(t *testing.T) {
	repo := NewMemoryRepository()
	c := repo.AddContract(Contract{SymbolCode: "ES", SourceFile: "ESH24.txt"})
	repo.AddBars(
		Bar{ContractID: c.ID, Timestamp: ts("2024-03-02 00:00")},
		Bar{ContractID: c.ID, Timestamp: ts("2024-03-01 23:55")},
		Bar{ContractID: c.ID, Timestamp: ts("2024-03-01 00:00")},
	)

	bars, err := repo.Bars(context.Background(), c.ID, d("2024-03-01"), d("2024-03-02"))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Timestamp.Before(bars[1].Timestamp))
}

func TestContractCode(t *testing.T) {
	c := Contract{SymbolCode: "ES", MonthCode: "H", Year: 2024}
	assert.Equal(t, "ESH24", c.Code())
}

func TestSynth_Deterministic(t *testing.T) {
	a := NewSynth(1, 100, 42).Range(d("2024-03-08"), d("2024-03-11"))
	b := NewSynth(1, 100, 42).Range(d("2024-03-08"), d("2024-03-11"))
	require.Equal(t, a, b)

	// 周五 + 周一，周末没有
	require.Len(t, a, 2*78)
	assert.Equal(t, ts("2024-03-08 09:30"), a[0].Timestamp)
	assert.Equal(t, ts("2024-03-11 15:55"), a[len(a)-1].Timestamp)
	for _, bar := range a {
		assert.Greater(t, *bar.Close, 0.0)
		assert.LessOrEqual(t, *bar.Low, *bar.High)
	}
}

// 文件: pkg/stats/summary.go
// 收益汇总: 1 美元终值、日均收益、年化收益、年化波动、夏普
//
// 年化收益按几何方式: final^(252/n) - 1
// 日波动用简单收益的样本标准差 (n > 1 时 ddof=1)
// 夏普无风险利率取 0，是小数不是百分比

package stats

import "math"

// TradingDays 年化用的年交易日数
const TradingDays = 252

// Summary 单个序列的汇总
type Summary struct {
	Kind          Kind    `json:"kind"`
	N             int     `json:"n"`
	FinalValue    float64 `json:"final_value"`
	DailyMeanPct  float64 `json:"daily_mean_pct"`
	AnnualMeanPct float64 `json:"annual_mean_pct"`
	AnnualStdPct  float64 `json:"annual_std_pct"`
	Sharpe        float64 `json:"sharpe"`
}

// SummaryRows 报表行名，与 Summary.Values 顺序一致
var SummaryRows = []string{
	"Final value of $1",
	"Daily Mean Ret (%)",
	"Annual Mean Ret (%)",
	"Annual StdDev(%)",
	"Ann Sharpe Ratio",
}

// Values 按 SummaryRows 的顺序
func (s Summary) Values() []float64 {
	return []float64{s.FinalValue, s.DailyMeanPct, s.AnnualMeanPct, s.AnnualStdPct, s.Sharpe}
}

// Summarize 汇总一个序列，NaN 跳过
func Summarize(days []Day, k Kind) Summary {
	nan := math.NaN()
	s := Summary{Kind: k, FinalValue: nan, DailyMeanPct: nan, AnnualMeanPct: nan, AnnualStdPct: nan, Sharpe: nan}

	simple := make([]float64, 0, len(days))
	for i := range days {
		if v := days[i].Log(k); !math.IsNaN(v) {
			simple = append(simple, math.Exp(v)-1)
		}
	}
	s.N = len(simple)
	if s.N == 0 {
		return s
	}

	final := 1.0
	for _, r := range simple {
		final *= 1 + r
	}
	s.FinalValue = final
	s.DailyMeanPct = mean(simple) * 100

	annualMean := nan
	if final > 0 {
		annualMean = math.Pow(final, float64(TradingDays)/float64(s.N)) - 1
		s.AnnualMeanPct = annualMean * 100
	}

	ddof := 0
	if s.N > 1 {
		ddof = 1
	}
	annualStd := stddev(simple, ddof) * math.Sqrt(TradingDays)
	s.AnnualStdPct = annualStd * 100

	if annualStd != 0 && !math.IsNaN(annualMean) {
		s.Sharpe = annualMean / annualStd
	}
	return s
}

// SummarizeAll 全部序列
func SummarizeAll(days []Day) []Summary {
	out := make([]Summary, 0, len(Kinds))
	for _, k := range Kinds {
		out = append(out, Summarize(days, k))
	}
	return out
}

// Cumulative 1 美元累计净值: 第一个有效值之前为 1，缺失日沿用前值
func Cumulative(days []Day, k Kind) []float64 {
	out := make([]float64, len(days))
	sum, seen := 0.0, false
	for i := range days {
		if v := days[i].Log(k); !math.IsNaN(v) {
			sum += v
			seen = true
		}
		if !seen {
			out[i] = 1
			continue
		}
		out[i] = math.Exp(sum)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, ddof int) float64 {
	n := len(xs)
	if n-ddof <= 0 {
		return math.NaN()
	}
	m := mean(xs)
	ss := 0.0
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(n-ddof))
}

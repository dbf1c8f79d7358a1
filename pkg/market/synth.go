// 文件: pkg/market/synth.go
// 合成K线生成器 (几何布朗运动)
//
// 用于压测和演示数据: 给定种子，输出完全确定。
// 只在工作日的 [SessionStart, SessionEnd) 内出线，周末没有K线。

package market

import (
	"math"
	"math/rand"
	"time"
)

// Synth 单个合约的K线生成器，非并发安全
type Synth struct {
	ContractID int64
	Price      float64
	Volatility float64 // 年化
	BarSize    time.Duration

	// SessionStart / SessionEnd 当天分钟数
	SessionStart int
	SessionEnd   int

	// Volume 每根K线的平均成交量
	Volume int64

	r *rand.Rand
}

// NewSynth 默认 20% 年化波动、5 分钟线、09:30–16:00
func NewSynth(contractID int64, startPrice float64, seed int64) *Synth {
	return &Synth{
		ContractID:   contractID,
		Price:        startPrice,
		Volatility:   0.2,
		BarSize:      5 * time.Minute,
		SessionStart: 9*60 + 30,
		SessionEnd:   16 * 60,
		Volume:       100,
		r:            rand.New(rand.NewSource(seed)),
	}
}

// Day 生成一个交易日的K线，周末返回 nil
func (s *Synth) Day(date time.Time) []Bar {
	date = DateOf(date)
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return nil
	}

	step := int(s.BarSize / time.Minute)
	// 一根K线占一年的比例，按 252 个交易日、每天 390 分钟
	dt := float64(step) / (252 * 390)
	sigma := s.Volatility

	bars := make([]Bar, 0, (s.SessionEnd-s.SessionStart)/step)
	for m := s.SessionStart; m+step <= s.SessionEnd; m += step {
		open := s.Price
		z := s.r.NormFloat64()
		s.Price *= math.Exp(-0.5*sigma*sigma*dt + sigma*math.Sqrt(dt)*z)
		closePx := s.Price
		high := math.Max(open, closePx)
		low := math.Min(open, closePx)
		vol := s.Volume/2 + s.r.Int63n(s.Volume+1)

		bars = append(bars, Bar{
			ContractID: s.ContractID,
			Timestamp:  date.Add(time.Duration(m) * time.Minute),
			Open:       &open,
			High:       &high,
			Low:        &low,
			Close:      &closePx,
			Volume:     &vol,
		})
	}
	return bars
}

// Range 闭区间 [from, to] 的全部K线
func (s *Synth) Range(from, to time.Time) []Bar {
	var out []Bar
	for d := DateOf(from); !d.After(DateOf(to)); d = d.AddDate(0, 0, 1) {
		out = append(out, s.Day(d)...)
	}
	return out
}

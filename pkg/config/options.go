// 文件: pkg/config/options.go
// 配置 -> 引擎参数

package config

import (
	"fmt"
	"time"

	"overnight.com/pkg/liquid"
	"overnight.com/pkg/market"
	"overnight.com/pkg/refprice"
	"overnight.com/pkg/series"
	"overnight.com/pkg/stats"
)

// BuildOptions 生成构建参数，日期和品种由调用方给
// 解析失败的错误同时包装 series.ErrConfig
func (c *Config) BuildOptions(symbols []string, start, end time.Time) (series.Options, error) {
	sess, err := refprice.NewSession(c.Engine.SessionOpen, c.Engine.SessionClose, c.Engine.BarSize)
	if err != nil {
		return series.Options{}, fmt.Errorf("%w: session: %w", series.ErrConfig, err)
	}
	win, err := series.NewWindow(c.Engine.RequiredOpenStart, c.Engine.RequiredOpenEnd)
	if err != nil {
		return series.Options{}, fmt.Errorf("%w: required open window: %w", series.ErrConfig, err)
	}

	var rules []market.RolloverRule
	if c.Rules.OverrideFile != "" {
		rules, err = market.LoadRulesFile(c.Rules.OverrideFile)
		if err != nil {
			return series.Options{}, fmt.Errorf("%w: %w", series.ErrConfig, err)
		}
	}

	return series.Options{
		Symbols:      symbols,
		Start:        start,
		End:          end,
		Workers:      c.Engine.Workers,
		ChunkDays:    c.Engine.ChunkDays,
		LookbackDays: c.Engine.LookbackDays,
		Session:      sess,
		Filters: liquid.Filters{
			MinDailyVolume:     c.Engine.MinDailyVolume,
			MaxDaysToLastTrade: c.Engine.MaxDaysToLastTrade,
		},
		OpenWindow: win,
		Rules:      rules,
	}, nil
}

// AggregateOptions 统计聚合参数
func (c *Config) AggregateOptions() (stats.AggregateOptions, error) {
	bucket, err := stats.ParseBucket(c.Stats.Bucket)
	if err != nil {
		return stats.AggregateOptions{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	metrics, err := stats.ParseMetrics(c.Stats.Metrics)
	if err != nil {
		return stats.AggregateOptions{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return stats.AggregateOptions{
		Kind:         stats.Kind(c.Stats.Kind),
		Bucket:       bucket,
		Metrics:      metrics,
		MinSamples:   c.Stats.MinSamples,
		ExcludeRolls: c.Stats.ExcludeRolls,
	}, nil
}

// WatchOptions watch 模式参数
func (c *Config) WatchOptions() series.WatchConfig {
	return series.WatchConfig{
		Schedule:    c.Watch.Schedule,
		RebuildDays: c.Watch.RebuildDays,
		RelinkDays:  c.Watch.RelinkDays,
		MetricsAddr: c.Metrics.Addr,
	}
}

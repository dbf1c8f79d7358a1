// 文件: pkg/stats/buckets.go
// 按时间桶聚合: day / week / month / all
//
// 指标: mean, median, std, pNN (线性插值), count
// 样本数低于 MinSamples 的桶除 count 外全部 NaN

package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"overnight.com/pkg/market"
)

// ErrInvalidMetric 无法识别的指标/桶
var ErrInvalidMetric = errors.New("invalid metric")

// Bucket 聚合粒度
type Bucket string

const (
	BucketDay   Bucket = "day"
	BucketWeek  Bucket = "week"
	BucketMonth Bucket = "month"
	BucketAll   Bucket = "all"
)

// ParseBucket 空字符串等同 all
func ParseBucket(s string) (Bucket, error) {
	switch b := Bucket(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BucketAll, nil
	case BucketDay, BucketWeek, BucketMonth, BucketAll:
		return b, nil
	}
	return "", fmt.Errorf("%w: bucket %q", ErrInvalidMetric, s)
}

// key 桶标识和桶起始日
func (b Bucket) key(date time.Time) (string, time.Time) {
	switch b {
	case BucketDay:
		return market.FormatDate(date), date
	case BucketWeek:
		y, w := date.ISOWeek()
		offset := (int(date.Weekday()) + 6) % 7 // 周一 = 0
		return fmt.Sprintf("%04d-W%02d", y, w), date.AddDate(0, 0, -offset)
	case BucketMonth:
		start := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start.Format("2006-01"), start
	}
	return "all", time.Time{}
}

// =============================================================================
// Metric
// =============================================================================

// Metric 单个指标
type Metric struct {
	Name string
	pct  float64 // 百分位 (0-100)，只对 pNN 有意义
}

// ParseMetrics "mean,median,std,p95,count"
func ParseMetrics(s string) ([]Metric, error) {
	var out []Metric
	for _, raw := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case name == "":
			continue
		case name == "mean", name == "median", name == "std", name == "count":
			out = append(out, Metric{Name: name})
		case strings.HasPrefix(name, "p"):
			p, err := strconv.ParseFloat(name[1:], 64)
			if err != nil || p < 0 || p > 100 {
				return nil, fmt.Errorf("%w: %q", ErrInvalidMetric, raw)
			}
			out = append(out, Metric{Name: name, pct: p})
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidMetric, raw)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no metrics", ErrInvalidMetric)
	}
	return out, nil
}

// apply sorted 为升序样本
func (m Metric) apply(sorted []float64) float64 {
	switch m.Name {
	case "count":
		return float64(len(sorted))
	case "mean":
		return mean(sorted)
	case "median":
		return percentile(sorted, 50)
	case "std":
		return stddev(sorted, 1)
	}
	return percentile(sorted, m.pct)
}

// percentile 线性插值，与 numpy 默认方法一致
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

// =============================================================================
// Aggregate
// =============================================================================

// AggregateOptions 聚合参数
type AggregateOptions struct {
	Kind    Kind
	Bucket  Bucket
	Metrics []Metric

	// MinSamples 桶内样本不足时指标为 NaN (count 除外)
	MinSamples int

	// ExcludeRolls 剔除展期当天的收益
	ExcludeRolls bool
}

// Row 一个桶的结果，Values 与 Metrics 顺序一致
type Row struct {
	Key    string
	Start  time.Time
	N      int
	Values []float64
}

// Aggregate 对简单收益分桶聚合，按桶起始日升序
func Aggregate(days []Day, opt AggregateOptions) []Row {
	type acc struct {
		start  time.Time
		values []float64
	}
	buckets := make(map[string]*acc)
	var order []string

	for i := range days {
		d := &days[i]
		key, start := opt.Bucket.key(d.Date)
		a, ok := buckets[key]
		if !ok {
			a = &acc{start: start}
			buckets[key] = a
			order = append(order, key)
		}
		if opt.ExcludeRolls && d.Roll {
			continue
		}
		v := d.Simple(opt.Kind)
		if math.IsNaN(v) {
			continue
		}
		a.values = append(a.values, v)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return buckets[order[i]].start.Before(buckets[order[j]].start)
	})

	rows := make([]Row, 0, len(order))
	for _, key := range order {
		a := buckets[key]
		sort.Float64s(a.values)
		row := Row{Key: key, Start: a.start, N: len(a.values), Values: make([]float64, len(opt.Metrics))}
		for i, m := range opt.Metrics {
			if m.Name != "count" && row.N < opt.MinSamples {
				row.Values[i] = math.NaN()
				continue
			}
			row.Values[i] = m.apply(a.values)
		}
		rows = append(rows, row)
	}
	return rows
}

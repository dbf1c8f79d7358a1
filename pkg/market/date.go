// 文件: pkg/market/date.go
// 交易日工具
//
// 交易日 = K线墙上时钟的日期部分，统一存成 UTC 零点。
// 所有 K线已经是同一个交易所时区，这里不做时区换算。

package market

import (
	"fmt"
	"time"
)

// DateLayout 交易日文本格式
const DateLayout = "2006-01-02"

// DateOf 取墙上时钟的日期部分
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate 格式化交易日
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// LastDayOfMonth 所在月份的最后一天
func LastDayOfMonth(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1)
}

// LastDayOfPriorMonth 上个月的最后一天
// 不用 AddDate(0, -1, 0): 3月31日减一个月会被规范化成 3月3日
func LastDayOfPriorMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// MinuteOfDay 墙上时钟分钟数 (0..1439)
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseClock 解析 HH:MM 为分钟数
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// 文件: pkg/refprice/session.go
// 会话开盘/收盘价解析
//
// K线时间戳是K线开始时间: 5分钟线 15:55 覆盖 15:55–16:00。
//
//   开盘边界 HH:MM (含):  优先取 HH:MM 开始的K线的 open，
//                         否则取 HH:MM 结束的那根 (HH:MM - bar) 的 close，两者是同一时刻的价格
//   收盘边界 HH:MM (不含): 取 HH:MM 结束的那根 (HH:MM - bar) 的 close，
//                         16:00 开始的K线的 close 是 16:05 的价格，不能用
//
// 没配置边界时: 当天第一根K线的 open / 最后一根K线的 close。
// 没有 close 的K线不参与开盘/收盘查找。

package refprice

import (
	"fmt"
	"time"

	"overnight.com/pkg/market"
)

// DefaultBarSize 默认K线周期
const DefaultBarSize = 5 * time.Minute

// Session 会话边界配置，值类型
type Session struct {
	openMinute  int
	closeMinute int
	hasOpen     bool
	hasClose    bool
	barMinutes  int
}

// NewSession open/close 为空表示不设边界；barSize <= 0 用默认值
func NewSession(open, close string, barSize time.Duration) (Session, error) {
	if barSize <= 0 {
		barSize = DefaultBarSize
	}
	if barSize%time.Minute != 0 {
		return Session{}, fmt.Errorf("bar size %s is not a whole number of minutes", barSize)
	}
	s := Session{barMinutes: int(barSize / time.Minute)}

	if open != "" {
		m, err := market.ParseClock(open)
		if err != nil {
			return Session{}, fmt.Errorf("session open: %w", err)
		}
		s.openMinute, s.hasOpen = m, true
	}
	if close != "" {
		m, err := market.ParseClock(close)
		if err != nil {
			return Session{}, fmt.Errorf("session close: %w", err)
		}
		if m < s.barMinutes {
			return Session{}, fmt.Errorf("session close %s earlier than one bar", close)
		}
		s.closeMinute, s.hasClose = m, true
	}
	if s.hasOpen && s.hasClose && s.openMinute >= s.closeMinute {
		return Session{}, fmt.Errorf("session open %s not before close %s", open, close)
	}
	return s, nil
}

// String 日志用
func (s Session) String() string {
	clock := func(m int) string { return fmt.Sprintf("%02d:%02d", m/60, m%60) }
	open, close := "first", "last"
	if s.hasOpen {
		open = clock(s.openMinute)
	}
	if s.hasClose {
		close = clock(s.closeMinute)
	}
	return fmt.Sprintf("%s-%s/%dm", open, close, s.barMinutes)
}

// Resolve 从单个合约某天的K线 (时间升序) 解析开盘、收盘价
func (s Session) Resolve(bars []market.Bar) (open, close float64, err error) {
	o, ok := s.open(bars)
	if !ok {
		return 0, 0, fmt.Errorf("%w: no open at boundary", ErrIncompleteSession)
	}
	c, ok := s.close(bars)
	if !ok {
		return 0, 0, fmt.Errorf("%w: no close at boundary", ErrIncompleteSession)
	}
	return o, c, nil
}

func (s Session) open(bars []market.Bar) (float64, bool) {
	if !s.hasOpen {
		for i := range bars {
			if bars[i].Close != nil {
				if bars[i].Open == nil {
					return 0, false
				}
				return *bars[i].Open, true
			}
		}
		return 0, false
	}

	if b := find(bars, s.openMinute); b != nil && b.Open != nil {
		return *b.Open, true
	}
	if b := find(bars, s.openMinute-s.barMinutes); b != nil {
		return *b.Close, true
	}
	return 0, false
}

func (s Session) close(bars []market.Bar) (float64, bool) {
	if !s.hasClose {
		for i := len(bars) - 1; i >= 0; i-- {
			if bars[i].Close != nil {
				return *bars[i].Close, true
			}
		}
		return 0, false
	}

	if b := find(bars, s.closeMinute-s.barMinutes); b != nil {
		return *b.Close, true
	}
	return 0, false
}

// find 开始于 minute 的、有 close 的K线
func find(bars []market.Bar, minute int) *market.Bar {
	if minute < 0 {
		return nil
	}
	for i := range bars {
		if bars[i].Close == nil {
			continue
		}
		m := market.MinuteOfDay(bars[i].Timestamp)
		if m == minute {
			return &bars[i]
		}
		if m > minute {
			break
		}
	}
	return nil
}

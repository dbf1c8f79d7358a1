// 文件: pkg/refprice/chain.go
// prev_close 链
//
// 按交易日升序折叠: 每个已确定活跃合约的交易日推进一次，
// 当天的 prev_close = 上一个推进日的 close (可能是 nil: 上一天会话不完整)。
// 合约变化时标记 Roll，跨展期的收益照常计算，由下游决定是否剔除。

package refprice

import "time"

// Link 当天从链上得到的信息
type Link struct {
	PrevClose    *float64
	PrevDate     time.Time
	PrevContract int64
	Roll         bool
}

// HasPrev 是否存在更早的已确定交易日
func (l Link) HasPrev() bool {
	return !l.PrevDate.IsZero()
}

// Chain 单个品种的累加器，不是并发安全的
type Chain struct {
	close    *float64
	date     time.Time
	contract int64
}

// Advance 推进一天，返回推进前的链状态
// date 必须严格递增，否则 panic (调用方的排序错误)
func (c *Chain) Advance(date time.Time, contractID int64, close *float64) Link {
	if !c.date.IsZero() && !date.After(c.date) {
		panic("refprice: chain advanced out of order")
	}
	link := Link{
		PrevClose:    c.close,
		PrevDate:     c.date,
		PrevContract: c.contract,
	}
	link.Roll = link.HasPrev() && c.contract != contractID

	c.date, c.contract = date, contractID
	if close != nil {
		v := *close
		c.close = &v
	} else {
		c.close = nil
	}
	return link
}

// Last 最近一次推进的交易日和收盘价
func (c *Chain) Last() (time.Time, *float64) {
	return c.date, c.close
}

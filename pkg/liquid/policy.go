// 文件: pkg/liquid/policy.go
// 展期规则引擎
//
// 【核心】不看当天成交量，只看日期判断合约还能不能当"当前合约":
//   before_expiry(N):        trade_date > expiry - N 天        → 不可用
//   on_expiry:               trade_date > expiry               → 不可用
//   from_prior_month_end(N): trade_date > 到期月上月月末 + N 天 → 不可用
//
// 排序只在可用合约里进行，所以即使即将到期的合约成交量仍然最大，也会被强制展期
// (交易台的做法: 在流动性枯竭/交割风险之前提前换月)。
//
// 没有规则、或合约没有到期日时，规则对该合约不生效，退化为纯成交量排序，
// 通过 ErrMissingRolloverRule / ErrMissingExpiryMetadata 显式告知调用方。

package liquid

import (
	"errors"
	"fmt"
	"time"

	"overnight.com/pkg/market"
)

// =============================================================================
// Filters - 候选过滤 (可选，默认全关)
// =============================================================================

// Filters 排序前的候选过滤
type Filters struct {
	// MinDailyVolume 当日成交量低于该值的合约不参与排序，0 = 不过滤
	MinDailyVolume int64

	// MaxDaysToLastTrade 合约末交易日距当天超过 N 天 (或已过末交易日) 不参与排序
	// 末交易日未知的合约同样排除，0 = 不过滤
	MaxDaysToLastTrade int
}

func (f Filters) keep(cv ContractVolume, c *market.Contract, date time.Time) bool {
	if f.MinDailyVolume > 0 && cv.Volume < f.MinDailyVolume {
		return false
	}
	if f.MaxDaysToLastTrade > 0 {
		if c == nil || c.LastTradeDate == nil {
			return false
		}
		days := int(c.LastTradeDate.Sub(date).Hours() / 24)
		if days < 0 || days > f.MaxDaysToLastTrade {
			return false
		}
	}
	return true
}

// =============================================================================
// Policy
// =============================================================================

// Policy 单个品种的展期策略，值类型，可并发使用
type Policy struct {
	rule market.RolloverRule
	has  bool
}

// NewPolicy rule 为 nil 或类型为空表示没有规则
func NewPolicy(rule *market.RolloverRule) Policy {
	if !rule.HasPolicy() {
		return Policy{}
	}
	return Policy{rule: *rule, has: true}
}

// Rule 当前规则 (没有规则返回 nil)
func (p Policy) Rule() *market.RolloverRule {
	if !p.has {
		return nil
	}
	r := p.rule
	return &r
}

// LastEligibleDate 合约最后一个可用交易日
func (p Policy) LastEligibleDate(c *market.Contract) (time.Time, error) {
	if !p.has {
		return time.Time{}, ErrMissingRolloverRule
	}
	if c == nil || !c.HasExpiry() {
		return time.Time{}, ErrMissingExpiryMetadata
	}
	expiry := market.DateOf(*c.ExpiryDate)

	switch p.rule.Type {
	case market.RuleBeforeExpiry:
		return expiry.AddDate(0, 0, -p.rule.Days), nil
	case market.RuleOnExpiry:
		return expiry, nil
	case market.RuleFromPriorMonthEnd:
		return market.LastDayOfPriorMonth(expiry).AddDate(0, 0, p.rule.Days), nil
	}
	return time.Time{}, fmt.Errorf("%w: type=%q", market.ErrInvalidRule, p.rule.Type)
}

// Eligible 合约在 date 是否可用
// 返回降级错误时 ok 恒为 true
func (p Policy) Eligible(c *market.Contract, date time.Time) (bool, error) {
	last, err := p.LastEligibleDate(c)
	if err != nil {
		if errors.Is(err, ErrMissingRolloverRule) || errors.Is(err, ErrMissingExpiryMetadata) {
			return true, err
		}
		return false, err
	}
	return !date.After(last), nil
}

// =============================================================================
// Select - 规则约束下的排序
// =============================================================================

// Selection 某天的选择结果
type Selection struct {
	ContractID int64
	Volume     int64

	// TopContractID 不考虑规则时成交量第一的合约
	TopContractID int64

	// Overridden 规则把成交量第一的合约排除了
	Overridden bool

	// NoRule 品种没有规则，纯成交量
	NoRule bool

	// MissingExpiry 参与排序但没有到期日的合约
	MissingExpiry []int64
}

// Select 在可用合约里排序
//
// 错误:
//   - ErrNoCandidate: 当天没有候选 (或全部被 Filters 过滤)
//   - ErrNoEligibleContract: 有候选，但规则下全部不可用
func (p Policy) Select(day DayVolumes, contracts map[int64]*market.Contract, f Filters) (Selection, error) {
	candidates := make([]ContractVolume, 0, len(day.Volumes))
	for _, cv := range day.Volumes {
		if f.keep(cv, contracts[cv.ContractID], day.Date) {
			candidates = append(candidates, cv)
		}
	}

	top, err := Rank(candidates)
	if err != nil {
		return Selection{}, err
	}

	sel := Selection{TopContractID: top.ContractID, NoRule: !p.has}
	eligible := make([]ContractVolume, 0, len(candidates))
	for _, cv := range candidates {
		ok, err := p.Eligible(contracts[cv.ContractID], day.Date)
		switch {
		case errors.Is(err, ErrMissingExpiryMetadata):
			sel.MissingExpiry = append(sel.MissingExpiry, cv.ContractID)
		case err != nil && !errors.Is(err, ErrMissingRolloverRule):
			return Selection{}, err
		}
		if ok {
			eligible = append(eligible, cv)
		}
	}

	best, err := Rank(eligible)
	if err != nil {
		return Selection{}, ErrNoEligibleContract
	}
	sel.ContractID = best.ContractID
	sel.Volume = best.Volume
	sel.Overridden = best.ContractID != top.ContractID
	return sel, nil
}

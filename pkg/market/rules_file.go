// 文件: pkg/market/rules_file.go
// 展期规则 CSV 加载
//
// 格式: Symbol,Description,RolloverDays,RolloverType
// - 第一行如果是表头则跳过
// - 空行、空 Symbol 跳过
// - 天数解析失败按 0
// - 类型为空表示该品种没有规则 (只按成交量)

package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ruleTypeAliases 规则类型的人类可读写法
var ruleTypeAliases = map[string]RuleType{
	"before_expiry":           RuleBeforeExpiry,
	"before expiry":           RuleBeforeExpiry,
	"days before expiry":      RuleBeforeExpiry,
	"from_prior_month_end":    RuleFromPriorMonthEnd,
	"from end of prior month": RuleFromPriorMonthEnd,
	"from prior month end":    RuleFromPriorMonthEnd,
	"on_expiry":               RuleOnExpiry,
	"on expiry":               RuleOnExpiry,
	"expiry":                  RuleOnExpiry,
}

// ParseRuleType 解析规则类型，空串返回 ok=false
func ParseRuleType(s string) (RuleType, bool, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	if norm == "" {
		return "", false, nil
	}
	norm = strings.Join(strings.Fields(strings.ReplaceAll(norm, "-", " ")), " ")
	if t, ok := ruleTypeAliases[norm]; ok {
		return t, true, nil
	}
	if t, ok := ruleTypeAliases[strings.ReplaceAll(norm, " ", "_")]; ok {
		return t, true, nil
	}
	return "", false, fmt.Errorf("%w: unknown rollover type %q", ErrInvalidRule, s)
}

// ParseRules 从 CSV 读取规则
func ParseRules(r io.Reader) ([]RolloverRule, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rules []RolloverRule
	for i := 0; ; i++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidRuleFile, i+1, err)
		}
		if len(row) == 0 {
			continue
		}
		symbol := strings.TrimSpace(row[0])
		if i == 0 {
			head := strings.ToLower(symbol)
			if head == "symbol" || head == "symbol_code" {
				continue
			}
		}
		if symbol == "" {
			continue
		}

		rule := RolloverRule{SymbolCode: symbol}
		if len(row) > 1 {
			rule.Description = strings.TrimSpace(row[1])
		}
		if len(row) > 2 {
			if days, err := strconv.Atoi(strings.TrimSpace(row[2])); err == nil {
				rule.Days = days
			}
		}
		if len(row) > 3 {
			t, ok, err := ParseRuleType(row[3])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			if ok {
				rule.Type = t
			}
		}
		if rule.Type == RuleOnExpiry {
			rule.Days = 0
		}
		if rule.Type != "" {
			if err := rule.Validate(); err != nil {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// LoadRulesFile 读文件
func LoadRulesFile(path string) ([]RolloverRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRuleFile, err)
	}
	defer f.Close()
	return ParseRules(f)
}

// MergeRules 用覆盖文件的规则覆盖库里的规则，返回新 map，不修改入参
// 覆盖行类型为空 = 该品种本次运行不使用规则
func MergeRules(base map[string]RolloverRule, overrides []RolloverRule) map[string]RolloverRule {
	out := make(map[string]RolloverRule, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for _, r := range overrides {
		out[r.SymbolCode] = r
	}
	return out
}

// HasPolicy 规则是否真的约束展期
func (r *RolloverRule) HasPolicy() bool {
	return r != nil && r.Type != ""
}

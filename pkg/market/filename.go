// 文件: pkg/market/filename.go
// 合约文件名解析
//
// Kibot 数据文件: <品种><月份代码><两位年份>.<扩展名>，例如 ADF18.txt
// 连续合约文件没有年份后缀，直接忽略。

package market

import (
	"path/filepath"
	"strconv"
	"strings"
)

// MonthCodes 标准期货月份代码，F=1月 ... Z=12月
const MonthCodes = "FGHJKMNQUVXZ"

// ParsedName 文件名解析结果
type ParsedName struct {
	Symbol    string
	MonthCode string
	Year      int
}

// ParseContractFilename 解析合约文件名
// 不是单月合约 (比如连续合约) 时 ok=false
func ParseContractFilename(filename string) (ParsedName, bool) {
	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if len(stem) < 4 {
		return ParsedName{}, false
	}

	monthCode := stem[len(stem)-3 : len(stem)-2]
	yearTwo := stem[len(stem)-2:]
	if !strings.Contains(MonthCodes, monthCode) {
		return ParsedName{}, false
	}
	yy, err := strconv.Atoi(yearTwo)
	if err != nil || yearTwo[0] < '0' || yearTwo[0] > '9' {
		return ParsedName{}, false
	}

	return ParsedName{
		Symbol:    stem[:len(stem)-3],
		MonthCode: monthCode,
		Year:      2000 + yy,
	}, true
}

// MonthOf 月份代码对应的月份 (1..12)，非法代码返回 0
func MonthOf(code string) int {
	if len(code) != 1 {
		return 0
	}
	return strings.Index(MonthCodes, code) + 1
}

// 文件: pkg/liquid/errors.go
// 活跃合约选择的错误分类
//
// 前三个是"当天无法确定活跃合约"，批处理里记成缺口继续跑。
// 后两个不是失败，只是降级标记: 规则缺失/到期日缺失时退化为纯成交量排序。

package liquid

import "errors"

var (
	ErrNoBarsForDate      = errors.New("no bars for requested date")
	ErrNoCandidate        = errors.New("no candidate contract")
	ErrNoEligibleContract = errors.New("no eligible contract under rollover rule")

	ErrMissingRolloverRule   = errors.New("symbol has no rollover rule")
	ErrMissingExpiryMetadata = errors.New("contract has no expiry date")
)

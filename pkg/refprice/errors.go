// 文件: pkg/refprice/errors.go

package refprice

import "errors"

var (
	// ErrIncompleteSession 开盘或收盘边界上没有K线，不用其它价格顶替
	ErrIncompleteSession = errors.New("incomplete session")

	// ErrNotFound 参考价不存在
	ErrNotFound = errors.New("reference price not found")
)

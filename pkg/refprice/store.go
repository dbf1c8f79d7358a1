// 文件: pkg/refprice/store.go
// 参考价存储接口
//
// 写入由批处理按 (symbol, trade_date) 整行覆盖，
// 读取方是统计层 (stats) 和候选品种列表。

package refprice

import (
	"context"
	"time"
)

// Range 查询整个序列时用的边界
var (
	MinDate = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	MaxDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Store 参考价存储
type Store interface {
	// Get 单日，不存在返回 ErrNotFound
	Get(ctx context.Context, symbol string, date time.Time) (*Record, error)

	// Range [from, to] 闭区间，按交易日升序
	Range(ctx context.Context, symbol string, from, to time.Time) ([]Record, error)

	// Bounds 已有数据的最早/最晚交易日，没有数据返回 ErrNotFound
	Bounds(ctx context.Context, symbol string) (time.Time, time.Time, error)

	// Candidates 参考价行数 >= minRows 的品种，按代码升序
	Candidates(ctx context.Context, minRows int64) ([]Candidate, error)

	// Upsert 按主键覆盖
	Upsert(ctx context.Context, records ...Record) error

	// Delete 删除单日 (缺口日重算时清理旧值)
	Delete(ctx context.Context, symbol string, date time.Time) error
}

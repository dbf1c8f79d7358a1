// 文件: pkg/report/parquet.go

package report

import (
	"io"

	"github.com/parquet-go/parquet-go"
)

// ParquetWriter 列式输出，价格列 optional
type ParquetWriter struct{}

func (ParquetWriter) Extension() string { return "parquet" }

func (ParquetWriter) Write(w io.Writer, rows []Row) error {
	return parquet.Write(w, rows)
}

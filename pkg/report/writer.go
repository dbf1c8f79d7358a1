// 文件: pkg/report/writer.go
// 序列记录输出
//
// 【设计】RecordWriter 只负责编码，打开文件/stdout 由 Save 负责，
// 构建流程通过 FileSink (series.Sink) 调用，不直接依赖具体格式。

package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"overnight.com/pkg/series"
)

// ErrUnsupportedFormat 未知输出格式
var ErrUnsupportedFormat = errors.New("unsupported output format")

// RecordWriter 某种格式的编码器
type RecordWriter interface {
	Write(w io.Writer, rows []Row) error
	Extension() string
}

// NewRecordWriter csv / xlsx / parquet
func NewRecordWriter(format string) (RecordWriter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return CSVWriter{}, nil
	case "xlsx", "excel":
		return XLSXWriter{Sheet: "Records"}, nil
	case "parquet":
		return ParquetWriter{}, nil
	}
	return nil, fmt.Errorf("%w: %q (use csv, xlsx, parquet)", ErrUnsupportedFormat, format)
}

// Save path 为空或 "-" 时写 stdout
func Save(rw RecordWriter, path string, recs []series.Record) error {
	rows := Rows(recs)
	if path == "" || path == "-" {
		return rw.Write(os.Stdout, rows)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := rw.Write(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// FileSink 把构建结果写到文件
type FileSink struct {
	writer RecordWriter
	path   string
}

var _ series.Sink = (*FileSink)(nil)

func NewFileSink(rw RecordWriter, path string) *FileSink {
	return &FileSink{writer: rw, path: path}
}

func (s *FileSink) Emit(ctx context.Context, res *series.Result) error {
	return Save(s.writer, s.path, res.Records)
}

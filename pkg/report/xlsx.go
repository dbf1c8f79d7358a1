// 文件: pkg/report/xlsx.go
// Excel 输出: 序列记录、统计汇总

package report

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"overnight.com/pkg/market"
	"overnight.com/pkg/stats"
)

// XLSXWriter 单个工作表
type XLSXWriter struct {
	Sheet string
}

func (XLSXWriter) Extension() string { return "xlsx" }

func (x XLSXWriter) Write(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := x.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i := range rows {
		cells := rows[i].cells()
		if err := setRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// =============================================================================
// 统计汇总
// =============================================================================

const (
	sheetSummary    = "Summary"
	sheetBuckets    = "Buckets"
	sheetCumulative = "Cumulative"
)

// SaveStatsXLSX 汇总表 + 分桶指标 + 1 美元累计净值曲线
func SaveStatsXLSX(path string, rep *stats.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return err
	}
	if err := writeSummarySheet(f, rep); err != nil {
		return err
	}
	if len(rep.Buckets) > 0 && rep.Aggregate != nil {
		if err := writeBucketSheet(f, rep); err != nil {
			return err
		}
	}
	if err := writeCumulativeSheet(f, rep); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, rep *stats.Report) error {
	if err := f.SetCellValue(sheetSummary, "A1", rep.Title()); err != nil {
		return err
	}
	header := []any{""}
	for _, s := range rep.Summaries {
		header = append(header, s.Kind.Title())
	}
	if err := setRow(f, sheetSummary, 2, header); err != nil {
		return err
	}
	for i, name := range stats.SummaryRows {
		row := []any{name}
		for _, s := range rep.Summaries {
			row = append(row, number(s.Values()[i]))
		}
		if err := setRow(f, sheetSummary, i+3, row); err != nil {
			return err
		}
	}
	return nil
}

func writeBucketSheet(f *excelize.File, rep *stats.Report) error {
	if _, err := f.NewSheet(sheetBuckets); err != nil {
		return err
	}
	header := []any{string(rep.Aggregate.Bucket), "start", "n"}
	for _, m := range rep.Aggregate.Metrics {
		header = append(header, m.Name)
	}
	if err := setRow(f, sheetBuckets, 1, header); err != nil {
		return err
	}
	for i, b := range rep.Buckets {
		row := []any{b.Key, startCell(b), b.N}
		for _, v := range b.Values {
			row = append(row, number(v))
		}
		if err := setRow(f, sheetBuckets, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeCumulativeSheet(f *excelize.File, rep *stats.Report) error {
	if _, err := f.NewSheet(sheetCumulative); err != nil {
		return err
	}
	header := []any{"trade_date"}
	for _, k := range stats.Kinds {
		header = append(header, k.Title())
	}
	if err := setRow(f, sheetCumulative, 1, header); err != nil {
		return err
	}

	curves := make([][]float64, len(stats.Kinds))
	for i, k := range stats.Kinds {
		curves[i] = stats.Cumulative(rep.Days, k)
	}
	for i := range rep.Days {
		row := []any{market.FormatDate(rep.Days[i].Date)}
		for _, c := range curves {
			row = append(row, number(c[i]))
		}
		if err := setRow(f, sheetCumulative, i+2, row); err != nil {
			return err
		}
	}
	if len(rep.Days) == 0 {
		return nil
	}

	last := len(rep.Days) + 1
	chart := &excelize.Chart{
		Type:  excelize.Line,
		Title: []excelize.RichTextRun{{Text: rep.Title() + ": growth of $1"}},
	}
	for i := range stats.Kinds {
		col, _ := excelize.ColumnNumberToName(i + 2)
		chart.Series = append(chart.Series, excelize.ChartSeries{
			Name:       fmt.Sprintf("'%s'!$%s$1", sheetCumulative, col),
			Categories: fmt.Sprintf("'%s'!$A$2:$A$%d", sheetCumulative, last),
			Values:     fmt.Sprintf("'%s'!$%s$2:$%s$%d", sheetCumulative, col, col, last),
		})
	}
	return f.AddChart(sheetCumulative, "H2", chart)
}

func startCell(b stats.Row) any {
	if b.Start.IsZero() {
		return ""
	}
	return market.FormatDate(b.Start)
}

// number Excel 不能存 NaN/Inf
func number(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "nan"
	}
	return v
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

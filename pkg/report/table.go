// 文件: pkg/report/table.go
// 终端表格输出

package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"overnight.com/pkg/market"
	"overnight.com/pkg/refprice"
	"overnight.com/pkg/series"
	"overnight.com/pkg/stats"
)

// WriteStatsTable 汇总表，后面跟分桶指标
func WriteStatsTable(w io.Writer, rep *stats.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(tw, "%s  %s..%s\n", rep.Title(), market.FormatDate(rep.From), market.FormatDate(rep.To))
	cols := []string{""}
	for _, s := range rep.Summaries {
		cols = append(cols, s.Kind.Title())
	}
	fmt.Fprintln(tw, strings.Join(cols, "\t")+"\t")
	for i, name := range stats.SummaryRows {
		line := []string{name}
		for _, s := range rep.Summaries {
			line = append(line, fmtFloat(s.Values()[i]))
		}
		fmt.Fprintln(tw, strings.Join(line, "\t")+"\t")
	}

	if rep.Aggregate != nil && len(rep.Buckets) > 0 {
		fmt.Fprintf(tw, "\n%s by %s\n", rep.Aggregate.Kind.Title(), rep.Aggregate.Bucket)
		head := []string{string(rep.Aggregate.Bucket), "n"}
		for _, m := range rep.Aggregate.Metrics {
			head = append(head, m.Name)
		}
		fmt.Fprintln(tw, strings.Join(head, "\t")+"\t")
		for _, b := range rep.Buckets {
			line := []string{b.Key, fmt.Sprint(b.N)}
			for _, v := range b.Values {
				line = append(line, fmtFloat(v))
			}
			fmt.Fprintln(tw, strings.Join(line, "\t")+"\t")
		}
	}
	return tw.Flush()
}

// WriteCandidates 候选品种列表
func WriteCandidates(w io.Writer, cands []refprice.Candidate) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "symbol\trows\tfirst\tlast")
	for _, c := range cands {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", c.SymbolCode, c.Rows, market.FormatDate(c.MinDate), market.FormatDate(c.MaxDate))
	}
	return tw.Flush()
}

// WriteBuildSummary 构建结果 (dry run 时也用它报告"将要写入"的内容)
func WriteBuildSummary(w io.Writer, res *series.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	verb := "written"
	if res.DryRun {
		verb = "would write"
	}
	fmt.Fprintf(tw, "run %d  %s..%s  %d records %s\n", res.RunID, market.FormatDate(res.Start), market.FormatDate(res.End), len(res.Records), verb)
	fmt.Fprintln(tw, "symbol\tdays\tresolved\trolls\tno_bars\tno_candidate\tno_eligible\tincomplete\tmissing_expiry\tno_rule")
	for _, s := range res.Summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%t\n",
			s.Symbol, s.Days, s.Resolved, s.Rolls,
			s.Gaps[series.GapNoBars], s.Gaps[series.GapNoCandidate], s.Gaps[series.GapNoEligible], s.Gaps[series.GapIncompleteSession],
			s.MissingExpiry, s.NoRule)
	}
	return tw.Flush()
}

func fmtFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf("%.3f", v)
}

package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"overnight.com/pkg/market"
	"overnight.com/pkg/refprice"
	"overnight.com/pkg/series"
	"overnight.com/pkg/stats"
)

func f(v float64) *float64 { return &v }

func d(s string) time.Time {
	t, _ := market.ParseDate(s)
	return t
}

func sampleRecords() []series.Record {
	return []series.Record{
		{Symbol: "ES", TradeDate: d("2024-03-15"), ContractID: 1, Contract: "ESH24", Volume: 100, Open: f(101), Close: f(102), PrevClose: f(101), Overnight: f(0), Intraday: f(1.0 / 101)},
		{Symbol: "ES", TradeDate: d("2024-03-18"), Gap: series.GapNoEligible},
	}
}

func TestNewRecordWriter(t *testing.T) {
	for format, ext := range map[string]string{"": "csv", "CSV": "csv", "xlsx": "xlsx", "parquet": "parquet"} {
		w, err := NewRecordWriter(format)
		require.NoError(t, err)
		assert.Equal(t, ext, w.Extension())
	}
	_, err := NewRecordWriter("json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSVWriter{}.Write(&buf, Rows(sampleRecords())))

	lines, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, Header, lines[0])
	assert.Equal(t, []string{"ES", "2024-03-15", "1", "ESH24", "100", "101", "102", "101", "0"}, lines[1][:9])
	// 缺口行价格为空
	assert.Equal(t, "", lines[2][5])
	assert.Equal(t, "no_eligible_contract", lines[2][11])
}

func TestParquetWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ParquetWriter{}.Write(&buf, Rows(sampleRecords())))

	rows, err := parquet.Read[Row](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ESH24", rows[0].Contract)
	assert.Equal(t, 102.0, *rows[0].Close)
	assert.Nil(t, rows[1].Close)
}

func TestFileSink_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.xlsx")
	sink := NewFileSink(XLSXWriter{Sheet: "Records"}, path)
	require.NoError(t, sink.Emit(context.Background(), &series.Result{Records: sampleRecords()}))

	x, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer x.Close()

	rows, err := x.GetRows("Records")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "symbol", rows[0][0])
	assert.Equal(t, "ESH24", rows[1][3])
}

func statsReport(t *testing.T) *stats.Report {
	ctx := context.Background()
	store := refprice.NewMemoryStore()
	require.NoError(t, store.Upsert(ctx,
		refprice.Record{SymbolCode: "ES", TradeDate: d("2024-03-14"), ContractID: 1, Open: f(100), Close: f(101)},
		refprice.Record{SymbolCode: "ES", TradeDate: d("2024-03-15"), ContractID: 1, Open: f(102), Close: f(103), PrevClose: f(101)},
		refprice.Record{SymbolCode: "ES", TradeDate: d("2024-03-18"), ContractID: 2, Open: f(103), Close: f(101), PrevClose: f(103)},
	))
	ms, err := stats.ParseMetrics("mean,p95,count")
	require.NoError(t, err)
	rep, err := stats.NewService(store, nil, nil).Report(ctx, "ES", time.Time{}, time.Time{},
		&stats.AggregateOptions{Kind: stats.KindOvernight, Bucket: stats.BucketWeek, Metrics: ms, MinSamples: 1})
	require.NoError(t, err)
	return rep
}

func TestWriteStatsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStatsTable(&buf, statsReport(t)))

	out := buf.String()
	assert.Contains(t, out, "ES (ES) stats")
	assert.Contains(t, out, "Final value of $1")
	assert.Contains(t, out, "Overnight (weekend)")
	assert.Contains(t, out, "2024-W11")
	assert.Contains(t, out, "nan")
}

func TestSaveStatsXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ES.xlsx")
	require.NoError(t, SaveStatsXLSX(path, statsReport(t)))

	_, err := os.Stat(path)
	require.NoError(t, err)

	x, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer x.Close()
	assert.Equal(t, []string{"Summary", "Buckets", "Cumulative"}, x.GetSheetList())

	rows, err := x.GetRows("Cumulative")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestWriteBuildSummary(t *testing.T) {
	res := &series.Result{
		RunID:  7,
		Start:  d("2024-03-14"),
		End:    d("2024-03-19"),
		DryRun: true,
		Summaries: []series.SymbolSummary{
			{Symbol: "ES", Days: 4, Resolved: 3, Gaps: map[series.GapReason]int{series.GapNoEligible: 1}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteBuildSummary(&buf, res))
	assert.Contains(t, buf.String(), "would write")
	assert.True(t, strings.Contains(buf.String(), "ES"))

	buf.Reset()
	require.NoError(t, WriteCandidates(&buf, []refprice.Candidate{{SymbolCode: "ES", Rows: 3, MinDate: d("2024-03-14"), MaxDate: d("2024-03-18")}}))
	assert.Contains(t, buf.String(), "2024-03-18")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"overnight.com/pkg/series"
	"overnight.com/pkg/stats"
)

func TestLoad_Defaults(t *testing.T) {
	v, err := Load("")
	require.NoError(t, err)
	cfg, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Engine.BarSize)
	assert.Equal(t, 90, cfg.Engine.ChunkDays)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, 10*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "overnight.series.records", cfg.Kafka.Topic)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overnight.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  workers: 8
  session_open: "09:30"
  session_close: "16:00"
output:
  format: parquet
`), 0o644))
	t.Setenv("OVN_ENGINE_WORKERS", "2")

	v, err := Load(path)
	require.NoError(t, err)
	cfg, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Engine.Workers, "环境变量优先于文件")
	assert.Equal(t, "09:30", cfg.Engine.SessionOpen)
	assert.Equal(t, "parquet", cfg.Output.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestDecode_Invalid(t *testing.T) {
	cases := map[string]struct {
		key string
		val any
	}{
		"workers":  {"engine.workers", 0},
		"format":   {"output.format", "xml"},
		"clock":    {"engine.session_open", "9h30"},
		"bucket":   {"stats.bucket", "year"},
		"loglevel": {"log.level", "trace"},
		"broker":   {"kafka.brokers", []string{"no-port"}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := Load("")
			require.NoError(t, err)
			v.Set(tc.key, tc.val)
			_, err = Decode(v)
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestBuildOptions(t *testing.T) {
	v, err := Load("")
	require.NoError(t, err)
	v.Set("engine.session_open", "09:30")
	v.Set("engine.session_close", "16:00")
	v.Set("engine.min_daily_volume", 100)
	v.Set("engine.required_open_start", "09:30")
	v.Set("engine.required_open_end", "10:00")
	cfg, err := Decode(v)
	require.NoError(t, err)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)
	opts, err := cfg.BuildOptions([]string{"ES"}, start, end)
	require.NoError(t, err)
	require.NoError(t, opts.Validate())

	assert.Equal(t, []string{"ES"}, opts.Symbols)
	assert.Equal(t, int64(100), opts.Filters.MinDailyVolume)
	assert.Equal(t, "09:30-16:00/5m", opts.Session.String())
	assert.Empty(t, opts.Rules)
}

func TestBuildOptions_BadRulesFile(t *testing.T) {
	v, err := Load("")
	require.NoError(t, err)
	v.Set("rules.override_file", filepath.Join(t.TempDir(), "missing.csv"))
	cfg, err := Decode(v)
	require.NoError(t, err)

	_, err = cfg.BuildOptions(nil, time.Now(), time.Now())
	require.ErrorIs(t, err, series.ErrConfig)
}

func TestBuildOptions_RulesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.csv")
	require.NoError(t, os.WriteFile(path, []byte("Symbol,Description,RolloverDays,RolloverType\nES,E-mini S&P,3,before_expiry\n"), 0o644))

	v, err := Load("")
	require.NoError(t, err)
	v.Set("rules.override_file", path)
	cfg, err := Decode(v)
	require.NoError(t, err)

	opts, err := cfg.BuildOptions(nil, time.Now(), time.Now())
	require.NoError(t, err)
	require.Len(t, opts.Rules, 1)
	assert.Equal(t, "ES", opts.Rules[0].SymbolCode)
	assert.Equal(t, 3, opts.Rules[0].Days)
}

func TestAggregateOptions(t *testing.T) {
	v, err := Load("")
	require.NoError(t, err)
	v.Set("stats.bucket", "month")
	v.Set("stats.metrics", "mean,p90")
	cfg, err := Decode(v)
	require.NoError(t, err)

	agg, err := cfg.AggregateOptions()
	require.NoError(t, err)
	assert.Equal(t, stats.KindOvernight, agg.Kind)
	assert.Len(t, agg.Metrics, 2)
}

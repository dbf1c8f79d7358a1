// 文件: cmd/overnight/commands.go
// 子命令

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"overnight.com/pkg/config"
	"overnight.com/pkg/kafka"
	"overnight.com/pkg/market"
	"overnight.com/pkg/nats"
	"overnight.com/pkg/report"
	"overnight.com/pkg/series"
	"overnight.com/pkg/stats"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseDate 空串返回零值
func parseDate(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := market.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: -%s: %v", errUsage, name, err)
	}
	return d, nil
}

// =============================================================================
// build
// =============================================================================

func cmdBuild(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("build")
	var (
		symbols = fs.String("symbols", "", "comma separated symbols, empty = all")
		start   = fs.String("start", "", "first trade date YYYY-MM-DD")
		end     = fs.String("end", "", "last trade date YYYY-MM-DD")
		format  = fs.String("format", a.cfg.Output.Format, "record output: csv|xlsx|parquet")
		out     = fs.String("out", a.cfg.Output.Path, "record output path, empty or - = stdout")
		rules   = fs.String("rules", a.cfg.Rules.OverrideFile, "rollover rule CSV overriding stored rules for this run")
		publish = fs.Bool("publish", false, "stream records to kafka and publish series.built")
	)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	from, err := parseDate("start", *start)
	if err != nil {
		return err
	}
	to, err := parseDate("end", *end)
	if err != nil {
		return err
	}
	rw, err := report.NewRecordWriter(*format)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	a.cfg.Rules.OverrideFile = *rules
	opts, err := a.cfg.BuildOptions(splitList(*symbols), from, to)
	if err != nil {
		return err
	}
	opts.DryRun = a.dryRun

	s, err := a.stores(ctx)
	if err != nil {
		return err
	}
	b, err := a.builder(s, series.NewMetrics(), *publish)
	if err != nil {
		return err
	}

	sinks := []series.Sink{report.NewFileSink(rw, *out)}
	if *publish {
		ks, err := a.kafkaSink()
		if err != nil {
			return err
		}
		if ks != nil {
			sinks = append(sinks, ks)
		}
	}

	res, err := b.Build(ctx, opts)
	if err != nil {
		return err
	}
	for _, sink := range sinks {
		if err := sink.Emit(ctx, res); err != nil {
			return err
		}
	}
	return report.WriteBuildSummary(os.Stderr, res)
}

// =============================================================================
// stats
// =============================================================================

func cmdStats(ctx context.Context, a *app, args []string) error {
	// stats SYMBOL [flags]: 品种在前时先取出来
	var symbol string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		symbol, args = args[0], args[1:]
	}

	sc := &a.cfg.Stats
	fs := newFlagSet("stats")
	var (
		start   = fs.String("start", "", "first trade date, default = first stored")
		end     = fs.String("end", "", "last trade date, default = last stored")
		all     = fs.Bool("all", false, "write an XLSX summary for every symbol with enough rows")
		minRows = fs.Int64("min-rows", sc.MinRows, "with -all: minimum stored rows per symbol")
		outDir  = fs.String("out-dir", sc.OutDir, "with -all: output directory")
		xlsx    = fs.String("xlsx", "", "also write the report to this XLSX file")
	)
	fs.StringVar(&sc.Kind, "kind", sc.Kind, "bucketed series: full|intraday|overnight|overnight_business|overnight_weekend")
	fs.StringVar(&sc.Bucket, "bucket", sc.Bucket, "day|week|month|all")
	fs.StringVar(&sc.Metrics, "metrics", sc.Metrics, "mean,median,std,pNN,count")
	fs.IntVar(&sc.MinSamples, "min-samples", sc.MinSamples, "buckets below this yield NaN")
	fs.BoolVar(&sc.ExcludeRolls, "exclude-rolls", sc.ExcludeRolls, "drop returns across a roll")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := config.Validate(a.cfg); err != nil {
		return err
	}
	if symbol == "" && fs.NArg() > 0 {
		symbol = fs.Arg(0)
	}
	if !*all && symbol == "" {
		return fmt.Errorf("%w: stats needs SYMBOL or -all", errUsage)
	}

	from, err := parseDate("start", *start)
	if err != nil {
		return err
	}
	to, err := parseDate("end", *end)
	if err != nil {
		return err
	}
	agg, err := a.cfg.AggregateOptions()
	if err != nil {
		return err
	}

	s, err := a.stores(ctx)
	if err != nil {
		return err
	}
	svc := stats.NewService(s.prices, s.contracts, a.log).WithRules(s.repo)

	if *all {
		return statsAll(ctx, a, svc, *minRows, *outDir, &agg)
	}

	rep, err := svc.Report(ctx, strings.ToUpper(symbol), from, to, &agg)
	if err != nil {
		return err
	}
	if err := report.WriteStatsTable(os.Stdout, rep); err != nil {
		return err
	}
	if *xlsx != "" {
		return report.SaveStatsXLSX(*xlsx, rep)
	}
	return nil
}

func statsAll(ctx context.Context, a *app, svc *stats.Service, minRows int64, outDir string, agg *stats.AggregateOptions) error {
	cands, err := svc.Candidates(ctx, minRows)
	if err != nil {
		return err
	}
	if err := report.WriteCandidates(os.Stdout, cands); err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return err
		}
		rep, err := svc.Report(ctx, c.SymbolCode, c.MinDate, c.MaxDate, agg)
		if errors.Is(err, stats.ErrNoData) {
			a.log.Warn("skip symbol", zap.String("symbol", c.SymbolCode), zap.Error(err))
			continue
		}
		if err != nil {
			return err
		}
		path := filepath.Join(outDir, c.SymbolCode+"_overnight_stats.xlsx")
		if err := report.SaveStatsXLSX(path, rep); err != nil {
			return err
		}
		a.log.Info("stats written", zap.String("symbol", c.SymbolCode), zap.String("path", path))
	}
	return nil
}

// =============================================================================
// rules
// =============================================================================

func cmdRules(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 || args[0] != "load" {
		return fmt.Errorf("%w: rules load FILE", errUsage)
	}
	rules, err := market.LoadRulesFile(args[1])
	if err != nil {
		return err
	}
	if a.dryRun {
		a.log.Info("dry run, rules not written", zap.Int("rules", len(rules)))
		return nil
	}
	s, err := a.stores(ctx)
	if err != nil {
		return err
	}
	n, err := s.repo.UpsertRules(ctx, rules)
	if err != nil {
		return err
	}
	a.log.Info("rules loaded", zap.String("file", args[1]), zap.Int("rules", len(rules)), zap.Int64("rows", n))
	return nil
}

// =============================================================================
// contracts
// =============================================================================

func cmdContracts(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: contracts refresh|register", errUsage)
	}
	switch args[0] {
	case "refresh":
		return contractsRefresh(ctx, a, args[1:])
	case "register":
		return contractsRegister(ctx, a, args[1:])
	}
	return fmt.Errorf("%w: unknown contracts command %q", errUsage, args[0])
}

func contractsRefresh(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("contracts refresh")
	symbols := fs.String("symbols", "", "comma separated symbols, empty = all")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	s, err := a.stores(ctx)
	if err != nil {
		return err
	}

	codes := splitList(*symbols)
	if len(codes) == 0 {
		syms, err := s.contracts.Symbols(ctx)
		if err != nil {
			return err
		}
		for _, sym := range syms {
			codes = append(codes, sym.Code)
		}
	}
	for _, code := range codes {
		if _, err := s.contracts.GetSymbol(ctx, code); err != nil {
			return fmt.Errorf("%s: %w", code, err)
		}
		if a.dryRun {
			continue
		}
		n, err := s.contracts.RefreshTradeDates(ctx, code)
		if err != nil {
			return fmt.Errorf("refresh %s: %w", code, err)
		}
		a.log.Info("trade dates refreshed", zap.String("symbol", code), zap.Int64("contracts", n))
	}
	return nil
}

// contractsRegister 按文件名登记合约 (ESH24.txt 等)，到期日不推断
func contractsRegister(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: contracts register DIR", errUsage)
	}
	entries, err := os.ReadDir(args[0])
	if err != nil {
		return err
	}
	s, err := a.stores(ctx)
	if err != nil {
		return err
	}

	var registered, skipped int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		pn, ok := market.ParseContractFilename(e.Name())
		if !ok {
			a.log.Debug("not a single-month contract", zap.String("file", e.Name()))
			skipped++
			continue
		}
		if a.dryRun {
			registered++
			continue
		}
		if err := s.contracts.EnsureSymbol(ctx, &market.Symbol{Code: pn.Symbol}); err != nil {
			return err
		}
		c := &market.Contract{
			SymbolCode: pn.Symbol,
			MonthCode:  pn.MonthCode,
			Year:       pn.Year,
			SourceFile: e.Name(),
		}
		if err := s.contracts.EnsureContract(ctx, c); err != nil {
			return fmt.Errorf("register %s: %w", e.Name(), err)
		}
		registered++
	}
	a.log.Info("contracts registered", zap.String("dir", args[0]), zap.Int("registered", registered), zap.Int("skipped", skipped))
	return nil
}

// =============================================================================
// watch
// =============================================================================

func cmdWatch(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("watch")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	base, err := a.cfg.BuildOptions(nil, time.Time{}, time.Time{})
	if err != nil {
		return err
	}
	base.DryRun = a.dryRun

	s, err := a.stores(ctx)
	if err != nil {
		return err
	}
	b, err := a.builder(s, series.NewMetrics(), true)
	if err != nil {
		return err
	}
	var sinks []series.Sink
	ks, err := a.kafkaSink()
	if err != nil {
		return err
	}
	if ks != nil {
		sinks = append(sinks, ks)
	}

	w := series.NewWatcher(b, base, a.cfg.WatchOptions(), a.log, sinks...)
	// 先 Start 再挂事件源，事件构建用的是 ctx
	if err := w.Start(ctx); err != nil {
		return err
	}
	if a.cfg.NATS.URL != "" {
		sub, err := nats.NewSubscriber(a.cfg.NATS.URL, w.HandleMessage, a.log)
		if err != nil {
			return err
		}
		defer sub.Close()
		if err := sub.SubscribeQueue(series.SubjectBarsIngested, a.cfg.Watch.Queue); err != nil {
			return err
		}
	}
	if a.cfg.Watch.KafkaTopic != "" && len(a.cfg.Kafka.Brokers) > 0 {
		ccfg := kafka.DefaultConsumerConfig(a.cfg.Kafka.Brokers, a.cfg.Watch.KafkaGroup, a.cfg.Watch.KafkaTopic)
		consumer, err := kafka.NewConsumer(ccfg, w.HandleMessage, a.log)
		if err != nil {
			return err
		}
		consumer.Start(ctx)
		defer consumer.Stop()
	}
	if a.cfg.NATS.URL == "" && a.cfg.Watch.KafkaTopic == "" {
		a.log.Warn("no event source configured, only scheduled rebuilds run")
	}

	a.log.Info("watching", zap.String("subject", series.SubjectBarsIngested))
	<-ctx.Done()

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	w.Stop(shutdown)
	return nil
}

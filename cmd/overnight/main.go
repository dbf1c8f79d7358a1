// 文件: cmd/overnight/main.go
// overnight 命令行入口
//
//	overnight [-config file] [-db dsn] [-v] [-dry-run] [-workers N] <command> [args]
//
// 退出码: 0 成功, 1 运行失败, 2 配置错误

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"overnight.com/pkg/config"
	"overnight.com/pkg/logx"
	"overnight.com/pkg/market"
	"overnight.com/pkg/series"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
)

// errUsage 参数错误
var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := flag.NewFlagSet("overnight", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var (
		cfgPath = fs.String("config", "", "YAML config file (env: OVN_*)")
		dsn     = fs.String("db", "", "MySQL DSN, overrides db.dsn")
		verbose = fs.Bool("v", false, "debug logging")
		dryRun  = fs.Bool("dry-run", false, "compute everything, write nothing")
		workers = fs.Int("workers", 0, "symbols processed in parallel, overrides engine.workers")
	)
	fs.Usage = func() { usage(os.Stderr, fs) }
	if err := fs.Parse(argv); err != nil {
		return exitConfig
	}
	args := fs.Args()
	if len(args) == 0 {
		usage(os.Stderr, fs)
		return exitConfig
	}

	v, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return exitConfig
	}
	if *dsn != "" {
		v.Set("db.dsn", *dsn)
	}
	if *workers > 0 {
		v.Set("engine.workers", *workers)
	}
	cfg, err := config.Decode(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return exitConfig
	}

	logger, err := logx.New(logx.Options{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding, Verbose: *verbose})
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return exitConfig
	}
	defer logger.Sync()

	if err := series.InitRunIDNode(cfg.Engine.RunIDNode); err != nil {
		logger.Error("run id node", zap.Error(err))
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, logger, *dryRun)
	defer a.close()

	err = dispatch(ctx, a, args)
	switch {
	case err == nil:
		return exitOK
	case isConfigError(err):
		logger.Error("configuration error", zap.String("command", args[0]), zap.Error(err))
		return exitConfig
	default:
		logger.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		return exitFailure
	}
}

func dispatch(ctx context.Context, a *app, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "build":
		return cmdBuild(ctx, a, rest)
	case "stats":
		return cmdStats(ctx, a, rest)
	case "rules":
		return cmdRules(ctx, a, rest)
	case "contracts":
		return cmdContracts(ctx, a, rest)
	case "watch":
		return cmdWatch(ctx, a, rest)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func isConfigError(err error) bool {
	return errors.Is(err, errUsage) ||
		errors.Is(err, config.ErrInvalid) ||
		errors.Is(err, series.ErrConfig) ||
		errors.Is(err, market.ErrInvalidRule) ||
		errors.Is(err, market.ErrInvalidRuleFile) ||
		errors.Is(err, market.ErrUnknownSymbol)
}

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprint(w, `usage: overnight [global flags] <command> [args]

commands:
  build      -symbols ES,NQ -start YYYY-MM-DD -end YYYY-MM-DD [-format csv|xlsx|parquet] [-out path] [-rules file] [-publish]
  stats      SYMBOL [-start] [-end] [-kind] [-bucket] [-metrics] [-min-samples N] [-exclude-rolls]
  stats      -all [-min-rows N] [-out-dir dir]
  rules      load FILE
  contracts  refresh [-symbols ES,NQ]
  contracts  register DIR
  watch

global flags:
`)
	fs.SetOutput(w)
	fs.PrintDefaults()
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/inventaire/internal/config"
	"github.com/mamadbah2/inventaire/internal/repository/spreadsheet"
	"github.com/mamadbah2/inventaire/internal/scheduler"
	"github.com/mamadbah2/inventaire/internal/server/handlers"
	"github.com/mamadbah2/inventaire/internal/server/router"
	"github.com/mamadbah2/inventaire/pkg/logger"
)

const usage = `usage: inventaire <command> [flags] [args]

commands:
  import <source>       import articles from an .xlsx path, an http(s) URL or sheets:<range>
  watch [-now] <source> re-import source on IMPORT_CRON_SCHEDULE; -now imports once first
  serve                 serve the article API and QR images
  backfill-qr           generate QR codes for articles that have none
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	command := args[0]
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", "", "optional .env file to load")
	runNow := fs.Bool("now", false, "watch: import once before waiting for the schedule")

	switch command {
	case "import", "watch", "serve", "backfill-qr":
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}

	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	var source string
	if command == "import" || command == "watch" {
		if fs.NArg() != 1 {
			fmt.Fprintf(stderr, "%s expects exactly one source\n\n%s", command, usage)
			return 2
		}
		source = fs.Arg(0)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}

	baseLogger, err := logger.NewWithFormat(cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(stderr, "logger error: %v\n", err)
		return 1
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	a, err := newApp(ctx, cfg, baseLogger, stdout, stderr)
	if err != nil {
		baseLogger.Error("failed to initialize", zap.Error(err))
		return 1
	}
	defer a.close(context.Background())

	switch command {
	case "import":
		return a.runImport(ctx, source)
	case "watch":
		return a.runWatch(ctx, source, *runNow)
	case "serve":
		return a.runServe(ctx)
	default:
		return a.runBackfill(ctx, stdout)
	}
}

// runImport returns 0 for problems with the source itself; they are already
// reported to the operator.
func (a *app) runImport(ctx context.Context, source string) int {
	_, err := a.importer.Run(ctx, source)
	switch {
	case err == nil,
		errors.Is(err, spreadsheet.ErrFileNotFound),
		errors.Is(err, spreadsheet.ErrParse),
		errors.Is(err, spreadsheet.ErrSchema),
		errors.Is(err, spreadsheet.ErrSourceUnavailable):
		return 0
	default:
		a.logger.Error("import failed", zap.Error(err))
		return 1
	}
}

func (a *app) runWatch(ctx context.Context, source string, runNow bool) int {
	sched, err := scheduler.NewScheduler(a.cfg.Schedule, a.importer, source, logger.Named(a.logger, "scheduler"))
	if err != nil {
		a.logger.Error("failed to init scheduler", zap.Error(err))
		return 1
	}
	if runNow {
		sched.RunNow(ctx)
	}
	if err := sched.Start(ctx); err != nil {
		a.logger.Error("failed to start scheduler", zap.Error(err))
		return 1
	}

	<-ctx.Done()
	a.logger.Info("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		a.logger.Warn("scheduled import still running at shutdown", zap.Error(err))
	}
	return 0
}

func (a *app) runServe(ctx context.Context) int {
	articleHandler := handlers.NewArticleHandler(a.articles, router.MediaPrefix, logger.Named(a.logger, "handlers.articles"))
	engine := router.New(articleHandler, a.cfg.Media.Root, logger.Named(a.logger, "router"))

	srv := &http.Server{
		Addr:         ":" + a.cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.logger.Error("http server crashed", zap.Error(err))
		return 1
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("graceful shutdown failed", zap.Error(err))
		return 1
	}
	return 0
}

func (a *app) runBackfill(ctx context.Context, stdout io.Writer) int {
	res, err := a.articles.BackfillQRCodes(ctx)
	fmt.Fprintf(stdout, "QR backfill: %d scanned, %d generated, %d failed.\n", res.Scanned, res.Generated, res.Failed)
	if err != nil {
		a.logger.Error("qr backfill interrupted", zap.Error(err))
		return 1
	}
	return 0
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/woo-export/config"
	"github.com/aluiziolira/woo-export/models"
	"github.com/aluiziolira/woo-export/pipeline"
	"github.com/aluiziolira/woo-export/projection"
	"github.com/aluiziolira/woo-export/woocommerce"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type options struct {
	website     string
	configPath  string
	envFile     string
	shape       string
	output      string
	format      string
	pageSize    int
	delayMs     int
	maxPages    int
	timeoutMs   int
	metricsAddr string
	list        bool
	verbose     bool
	changed     func(name string) bool
	transport   http.RoundTripper
	stdout      io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()
	opts := &options{stdout: os.Stdout}

	cmd := &cobra.Command{
		Use:           "wcexport [--website <name>]",
		Short:         "Export a WooCommerce catalog to CSV, page by page.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.changed = cmd.Flags().Changed
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.website, "website", "", "Website name from the config file (defaults to default_website)")
	flags.StringVar(&opts.configPath, "config", "config.json", "Path to the JSON5 config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	flags.StringVar(&opts.shape, "shape", defaults.Shape, "Output shape: "+strings.Join(projection.Shapes(), ", "))
	flags.StringVar(&opts.output, "output", "", "Output file path (derived from shape and website when empty)")
	flags.StringVar(&opts.format, "format", defaults.OutputFormat, "Output format: csv, json, or dual")
	flags.IntVar(&opts.pageSize, "page-size", defaults.PageSize, "Records requested per page")
	flags.IntVar(&opts.delayMs, "delay", int(defaults.Delay/time.Millisecond), "Delay between pages (milliseconds)")
	flags.IntVar(&opts.maxPages, "max-pages", defaults.MaxPages, "Stop after this many pages (0 = until a short page)")
	flags.IntVar(&opts.timeoutMs, "timeout", int(defaults.Timeout/time.Millisecond), "Per-request timeout (milliseconds)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolVar(&opts.list, "list", false, "List configured websites and exit")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	return cmd
}

func run(ctx context.Context, opts *options) (err error) {
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", opts.envFile, err)
	}

	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return err
	}

	file, err := config.LoadFile(opts.configPath)
	if err != nil {
		return err
	}
	if opts.list {
		printWebsites(opts.stdout, file)
		return nil
	}

	projector, err := projection.ForShape(cfg.Shape)
	if err != nil {
		return &config.ConfigError{Msg: "invalid shape", Err: err}
	}

	site, website, err := config.ResolveSite(file, opts.website, config.EnvSite())
	if err != nil {
		return err
	}
	slog.Info("using website",
		slog.String("website", website),
		slog.String("url", site.SiteURL),
		slog.String("shape", projector.Name()),
	)

	client, err := woocommerce.NewClient(site, cfg, projector.Collection())
	if err != nil {
		return fmt.Errorf("initialising client: %w", err)
	}
	if opts.transport != nil {
		client.WithTransport(opts.transport)
	}

	outputFile := cfg.ResolveOutputFile(projector.FilePrefix(), website)
	writer, err := pipeline.NewOutputWriter(cfg.OutputFormat, outputFile, projector.Header())
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if closeErr := writer.Close(); closeErr != nil {
			slog.Error("close writer", slog.Any("error", closeErr))
			if err == nil {
				err = closeErr
			}
		}
	}()

	exporter := pipeline.NewExporter(client, projector, writer, cfg, strings.Join(pipeline.OutputPaths(cfg.OutputFormat, outputFile), ", "))

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(exporter.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", slog.Any("error", err))
			}
		}()
	}

	slog.Info("starting export",
		slog.String("endpoint", client.Endpoint()),
		slog.Int("page_size", cfg.PageSize),
		slog.Duration("delay", cfg.Delay),
	)

	summary, runErr := exporter.Run(ctx)
	printSummary(opts.stdout, summary)
	if runErr != nil {
		return runErr
	}

	if summary.Outcome == models.OutcomeCompleted && (projector.Header() != nil || summary.TotalRows > 0) {
		if err := writer.Validate(); err != nil {
			slog.Error("output validation failed", slog.Any("error", err))
			return err
		}
	}
	return nil
}

func buildConfig(opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, &config.ConfigError{Msg: "environment", Err: err}
	}

	changed := opts.changed
	if changed == nil {
		changed = func(string) bool { return true }
	}
	if changed("shape") {
		cfg.Shape = opts.shape
	}
	if changed("output") {
		cfg.OutputFile = opts.output
	}
	if changed("format") {
		cfg.OutputFormat = strings.ToLower(opts.format)
	}
	if changed("page-size") {
		cfg.PageSize = opts.pageSize
	}
	if changed("delay") {
		cfg.Delay = time.Duration(opts.delayMs) * time.Millisecond
	}
	if changed("max-pages") {
		cfg.MaxPages = opts.maxPages
	}
	if changed("timeout") {
		cfg.Timeout = time.Duration(opts.timeoutMs) * time.Millisecond
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	cfg.Verbose = opts.verbose
	return cfg, nil
}

func printWebsites(w io.Writer, file *config.File) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Website", "URL", "Default"})

	names := file.Names()
	for _, name := range names {
		marker := ""
		if name == file.DefaultWebsite {
			marker = "*"
		}
		t.AppendRow(table.Row{name, file.Websites[name].SiteURL, marker})
	}
	if len(names) == 0 {
		t.AppendRow(table.Row{config.DefaultWebsite, config.EnvSite().SiteURL, "*"})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}

func printSummary(w io.Writer, summary *models.ExportSummary) {
	if summary == nil {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Export " + string(summary.Outcome))
	t.AppendRows([]table.Row{
		{"Pages fetched", summary.PagesFetched},
		{"Rows written", summary.TotalRows},
		{"Records skipped", summary.Skipped},
		{"Duration", summary.Duration().Round(time.Millisecond)},
		{"Output", summary.OutputFile},
	})
	if reason := summary.Reason(); reason != "" {
		t.AppendRow(table.Row{"Error", reason})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pagebatch/pagebatch/batch"
	"github.com/pagebatch/pagebatch/browserprocess"
	"github.com/pagebatch/pagebatch/executable"
	"github.com/pagebatch/pagebatch/install"
	"github.com/pagebatch/pagebatch/metrics"
	"github.com/pagebatch/pagebatch/operation"
	"github.com/pagebatch/pagebatch/osext"
	"github.com/pagebatch/pagebatch/otel"
	"github.com/pagebatch/pagebatch/session"
	"github.com/pagebatch/pagebatch/storage"
	"github.com/pagebatch/pagebatch/trace"
)

type runOptions struct {
	out     string
	summary bool
}

func newRunCommand(gs *globalState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a batch file",
		Long: `Run the items of a batch file, a JSON array or a YAML sequence, and write
their outputs as a JSON array.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), gs, afero.NewOsFs(), args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.Bool("continue-on-fail", false, "record failed items as error outputs instead of stopping")
	flags.String("backend", "auto", "engine backend: auto, cdp or playwright")
	flags.String("install-root", "", "engine install directory (default is the playwright cache)")
	flags.StringVarP(&opts.out, "out", "o", "", "write outputs to this file instead of stdout")
	flags.BoolVar(&opts.summary, "summary", true, "print a summary table to stderr")

	return cmd
}

// readItems decodes the batch file at path, by extension.
func readItems(fs afero.Fs, path string) ([]batch.Item, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening batch file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return batch.DecodeYAML(f)
	case ".json", "":
		return batch.DecodeJSON(f)
	default:
		return nil, fmt.Errorf("unsupported batch file %q, use .json, .yaml or .yml", path)
	}
}

// writeOutputs writes outputs as an indented JSON array.
func writeOutputs(w io.Writer, outputs []batch.Output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if outputs == nil {
		outputs = []batch.Output{}
	}
	return enc.Encode(outputs)
}

func runBatch(ctx context.Context, gs *globalState, fs afero.Fs, path string, opts runOptions) error {
	cfg, logger := gs.cfg, gs.logger

	items, err := readItems(fs, path)
	if err != nil {
		return err
	}
	root, err := gs.installRoot()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx = osext.WithRunID(ctx, runID)

	reg := prometheus.NewRegistry()
	m, err := metrics.RegisterCustomMetrics(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, reg, gs)
		defer stopMetrics()
	}

	tp := otel.NewNoopTraceProvider()
	if cfg.Traces.Proto != "" {
		if tp, err = otel.NewTraceProvider(ctx, otel.Options{
			Proto:    cfg.Traces.Proto,
			Endpoint: cfg.Traces.Endpoint,
			Insecure: cfg.Traces.Insecure,
			Writer:   gs.stderr,
		}); err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if serr := tp.Shutdown(sctx); serr != nil {
			logger.Warnf("run", "shutting down tracing: %v", serr)
		}
	}()
	tracer := trace.NewTracer(logger.WithField("category", "Tracer"), tp, map[string]string{"run.id": runID}, cfg.Traces.Verbose)

	drivers, stopDrivers := newDrivers(cfg.Backend, logger)
	defer func() {
		if serr := stopDrivers(); serr != nil {
			logger.Warnf("run", "%v", serr)
		}
	}()

	summary := &summaryObserver{}
	osFs := afero.NewOsFs()
	executor := batch.NewExecutor(
		executable.NewResolver(osFs),
		install.NewPlaywright(root, logger),
		session.NewLauncher(drivers, session.Options{
			LaunchTimeout:     cfg.LaunchTimeout,
			NavigationTimeout: cfg.NavigationTimeout,
			CloseTimeout:      cfg.CloseTimeout,
		}, logger),
		operation.NewDispatcher(storage.NewLocalFilePersister(osFs), cfg.SelectorTimeout, logger),
		batch.Options{
			ContinueOnFail: cfg.ContinueOnFail,
			InstallRoot:    root,
			Observer:       batch.Observers{batch.NewLogObserver(logger), m, summary},
			Tracer:         tracer,
		},
		logger,
	)

	outputs, runErr := executor.Run(ctx, items)
	if ctx.Err() != nil {
		logger.Warnf("run", "interrupted, stopping engine processes")
		browserprocess.ForceProcessShutdown(ctx)
	}

	if err := writeResult(fs, gs, opts.out, outputs); err != nil {
		return errors.Join(runErr, err)
	}
	if opts.summary {
		if err := renderSummary(gs.stderr, summary.Reports()); err != nil {
			logger.Warnf("run", "printing summary: %v", err)
		}
	}

	return runErr
}

func writeResult(fs afero.Fs, gs *globalState, out string, outputs []batch.Output) error {
	if out == "" {
		return writeOutputs(gs.stdout, outputs)
	}
	f, err := fs.Create(out)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := writeOutputs(f, outputs); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing outputs: %w", err)
	}
	return f.Close()
}

// serveMetrics serves the registry on addr until the returned func is
// called.
func serveMetrics(addr string, reg *prometheus.Registry, gs *globalState) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		gs.logger.Infof("run", "serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			gs.logger.Errorf("run", "serving metrics: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

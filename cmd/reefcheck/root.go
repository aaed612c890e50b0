package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reefcore/internal/config"
	"reefcore/internal/core"
)

// app carries the state shared by subcommands for one invocation.
type app struct {
	configPath string
	verbose    bool

	stdout io.Writer
	stderr io.Writer

	cfg     config.Config
	logger  *zap.Logger
	closers []func() error
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "reefcheck",
		Short:         "Validate reef survey drafts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("REEFCORE_CONFIG"), "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newValidateCmd(a), newIgnoreCmd(a), newPipelinesCmd(a))
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	logger, err := buildLogger(cfg.Log.Level, a.verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func buildLogger(level string, verbose bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	lvl := zapcore.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		lvl = parsed
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// service opens the configured backend and wires a Service over it. The
// backend and exporters are released by close, which run calls even when the
// command fails.
func (a *app) service(ctx context.Context) (*core.Service, error) {
	stores, err := core.OpenStores(ctx, a.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.closers = append(a.closers, stores.Close)

	opts := []core.Option{core.WithLogger(a.logger), core.WithInstance(stores.Instance)}
	archive, err := core.OpenArchive(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	if archive != nil {
		opts = append(opts, core.WithArchive(archive))
	}
	metrics, err := a.metrics()
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		opts = append(opts, core.WithMetrics(metrics))
	}
	if a.cfg.Trace.File != "" {
		// #nosec G304 -- path is operator-provided trace path.
		f, err := os.OpenFile(a.cfg.Trace.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open trace file: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}
	a.logger.Debug("storage opened", zap.String("driver", string(stores.Driver)))
	return core.NewService(stores.Records, stores.Refs, opts...)
}

func (a *app) metrics() (core.MetricsRecorder, error) {
	switch a.cfg.Metrics.Driver {
	case config.MetricsExpvar:
		rec := core.NewExpvarMetricsRecorder("")
		a.closers = append(a.closers, func() error {
			snap := rec.Snapshot()
			a.logger.Debug("metrics", zap.Any("results", snap.Results), zap.Any("runs", snap.Runs))
			return nil
		})
		return rec, nil
	case config.MetricsPrometheus:
		reg := prometheus.NewRegistry()
		rec, err := core.NewPrometheusRecorder(reg)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		if path := a.cfg.Metrics.Textfile; path != "" {
			a.closers = append(a.closers, func() error {
				return prometheus.WriteToTextfile(path, reg)
			})
		}
		return rec, nil
	default:
		return nil, nil
	}
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Command qsim simulates quantum circuits from JSON requests or OpenQASM 2.0
// files.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/natefinch/lumberjack.v2"

	"qircuitsim/internal/config"
	"qircuitsim/internal/engine"
	"qircuitsim/internal/service"
)

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every command needs, built once in Before.
type env struct {
	cfg      config.Config
	logger   *log.Logger
	engine   *engine.Engine
	service  *service.Service
	shutdown func(context.Context) error
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	e := &env{}

	return &cli.App{
		Name:      "qsim",
		Usage:     "dense statevector quantum circuit simulator",
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"QSIM_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override logging.level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "export OpenTelemetry spans and metrics to stderr",
			},
		},
		Before: func(c *cli.Context) error {
			return e.setup(c)
		},
		After: func(c *cli.Context) error {
			if e.shutdown != nil {
				return e.shutdown(c.Context)
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand(e),
			qasmCommand(e),
			exportCommand(e),
			inspectCommand(e),
		},
	}
}

func (e *env) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	e.cfg = cfg

	e.logger, err = newLogger(c.App.ErrWriter, cfg.Logging)
	if err != nil {
		return err
	}

	meterProvider := otel.GetMeterProvider()
	if c.Bool("trace") || cfg.Telemetry.TraceStdout {
		shutdownTracer, err := initTracer(c.App.ErrWriter)
		if err != nil {
			return err
		}
		mp, err := initMeter(c.App.ErrWriter)
		if err != nil {
			return err
		}
		meterProvider = mp
		e.shutdown = func(ctx context.Context) error {
			return errors.Join(mp.Shutdown(ctx), shutdownTracer(ctx))
		}
	}

	metrics, err := engine.NewMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	e.engine = engine.New(
		engine.Limits{
			MaxQubits: cfg.Engine.MaxQubits,
			MaxShots:  cfg.Engine.MaxShots,
			MaxWork:   cfg.Engine.MaxWork,
		},
		engine.WithLogger(e.logger),
		engine.WithMetrics(metrics),
	)
	e.service = service.New(e.engine,
		service.WithLogger(e.logger),
		service.WithDefaultSeed(cfg.Engine.Seed),
	)
	return nil
}

func newLogger(w io.Writer, cfg config.LoggingConfig) (*log.Logger, error) {
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
	}
	opts := log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "qsim",
	}
	if cfg.Format == "json" {
		opts.Formatter = log.JSONFormatter
	}
	return log.NewWithOptions(w, opts), nil
}

// initTracer installs a stdout span exporter as the global tracer provider.
func initTracer(w io.Writer) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithWriter(w),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// initMeter installs a stdout metric exporter as the global meter provider.
// Metrics are flushed when the provider shuts down.
func initMeter(w io.Writer) (*sdkmetric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(
		stdoutmetric.WithPrettyPrint(),
		stdoutmetric.WithWriter(w),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(mp)

	return mp, nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schultz-net/schultz-go/internal/config"
	"github.com/schultz-net/schultz-go/internal/metrics"
	"github.com/schultz-net/schultz-go/internal/node"
	"github.com/schultz-net/schultz-go/internal/reporter"
	"github.com/schultz-net/schultz-go/pkg/log"
)

type mode int

const (
	// modeBootstrap dials the bootnodes once and exits.
	modeBootstrap mode = iota
	// modeRun also listens, until the context is canceled.
	modeRun
)

func (m mode) String() string {
	if m == modeRun {
		return "run"
	}
	return "bootstrap"
}

func runProbe(ctx context.Context, m mode, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(m.String(), flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "schultz %s - %s\n\nUsage:\n  schultz %s [flags]\n\nFlags:\n",
			m, modeDescription(m), m)
		fs.PrintDefaults()
	}

	var f probeFlags
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitConfig
	}

	logger, err := newLogger(stderr, f.logFormat, f.verbose)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}

	var applyErr error
	cfg, err := config.Load(f.configPath, func(file *config.File) {
		applyErr = f.apply(fs, file)
		if m == modeBootstrap {
			file.ListenAddress = ""
		}
	})
	if err == nil {
		err = applyErr
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}
	if m == modeRun && cfg.ListenAddress == "" {
		fmt.Fprintln(stderr, "Error: run requires a listen address (-listen or listen_address)")
		return exitConfig
	}

	out := stdout
	if f.output != "" {
		file, err := os.Create(f.output)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitConfig
		}
		defer file.Close()
		out = file
	}
	rep, err := newReporter(f.format, out, f.verbose)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}

	// Protocol event logging: file capture and, when verbose, the console.
	var protocolLoggers []log.Logger
	if cfg.ProtocolLog != "" {
		fileLogger, err := log.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			fmt.Fprintf(stderr, "Error: failed to create protocol logger: %v\n", err)
			return exitConfig
		}
		defer func() {
			fileLogger.Close()
			if n := fileLogger.Dropped(); n > 0 {
				logger.Warn("protocol log incomplete", "dropped", n)
			}
		}()
		protocolLoggers = append(protocolLoggers, fileLogger)
		logger.Info("protocol logging", "path", cfg.ProtocolLog)
	}
	if f.verbose {
		protocolLoggers = append(protocolLoggers, log.NewSlogAdapter(logger))
	}

	if cfg.IdentityGenerated {
		logger.Info("using a freshly generated identity", "scheme", cfg.Identity.Scheme().String())
	}

	collector := reporter.NewCollector()
	sinks := reporter.MultiSink{collector, rep}

	var mtr *metrics.Metrics
	if cfg.MetricsAddress != "" {
		mtr = metrics.New()
		srv, err := metrics.Listen(cfg.MetricsAddress, mtr)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitConfig
		}
		metricsCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go srv.Serve(metricsCtx)
		logger.Info("serving metrics", "address", srv.Addr().String())
	}

	opts := node.Options{
		Sink:    sinks,
		Metrics: mtr,
		Logger:  logger,
	}
	if len(protocolLoggers) > 0 {
		opts.ProtocolLogger = log.NewMultiLogger(protocolLoggers...)
	}

	n, err := node.New(cfg, opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}

	logger.Info("identity", "fingerprint", cfg.Identity.Fingerprint().String())
	if err := n.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitRejected
	}

	summary := collector.Summary()
	rep.ReportSummary(summary)
	return exitCode(m, summary)
}

// exitCode maps a run to the process exit status. A listening node that was
// stopped cleanly exits 0; a bootstrap succeeds only if every attempt was
// accepted.
func exitCode(m mode, s *reporter.Summary) int {
	if m == modeRun || s.AllAccepted() {
		return exitOK
	}
	return exitRejected
}

func modeDescription(m mode) string {
	if m == modeRun {
		return "Dial the bootnodes and accept inbound handshakes until stopped"
	}
	return "Dial the bootnodes once, report every outcome and exit"
}

func newReporter(format string, w io.Writer, verbose bool) (reporter.Reporter, error) {
	switch format {
	case "text":
		return reporter.NewTextReporter(w, verbose), nil
	case "json":
		return reporter.NewJSONReporter(w, verbose), nil
	case "junit":
		return reporter.NewJUnitReporter(w), nil
	default:
		return nil, fmt.Errorf("unknown report format %q (text, json, junit)", format)
	}
}

func newLogger(w io.Writer, format string, verbose bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (text, json)", format)
	}
}

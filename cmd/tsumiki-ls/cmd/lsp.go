package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/tsumiki/tsumiki-ls/internal/logging"
	"github.com/tsumiki/tsumiki-ls/internal/lspserver"
	"github.com/tsumiki/tsumiki-ls/internal/telemetry"
)

// serverFlags are defined on the root command; subcommands inherit them.
func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "stdio",
			Usage: "Use stdio transport (the only transport)",
			Value: true,
		},
		&cli.StringFlag{
			Name:  "framing",
			Usage: "Message framing: auto, header, line",
		},
		&cli.DurationFlag{
			Name:  "idle-timeout",
			Usage: "Exit after this long without a message (0 disables)",
		},
	}
}

func lspCommand() *cli.Command {
	return &cli.Command{
		Name:   "lsp",
		Usage:  "Start the language server on stdio",
		Action: runLSP,
	}
}

func runLSP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	provider, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:   "tsumiki-ls",
		EnableMetrics: cfg.Telemetry.Metrics,
		EnableTraces:  cfg.Telemetry.Traces,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logrus.WithError(err).Warn("telemetry shutdown")
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := lspserver.New(lspserver.Options{
		Logger:      logrus.StandardLogger(),
		Framing:     cfg.Server.Framing,
		IdleTimeout: cfg.Server.IdleTimeout,
		Instruments: provider.Instruments(),
	})
	logrus.WithField("framing", cfg.Server.Framing).Info("tsumiki-ls language server starting")

	if err := srv.RunStdio(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	srv.Wait()
	if cfg.Telemetry.Metrics {
		logMetrics(ctx, provider)
	}
	if code := srv.ExitCode(); code != 0 {
		return cli.Exit("", code)
	}
	return nil
}

// logMetrics writes every collected data point to the log.
func logMetrics(ctx context.Context, provider *telemetry.Provider) {
	rm, err := provider.Collect(context.WithoutCancel(ctx))
	if err != nil {
		logrus.WithError(err).Warn("collect metrics")
		return
	}
	for _, pt := range telemetry.Points(rm) {
		fields := logrus.Fields{"metric": pt.Metric, "unit": pt.Unit}
		for k, v := range pt.Attributes {
			fields[k] = v
		}
		if pt.Count > 0 {
			fields["count"] = pt.Count
			fields["sum"] = pt.Value
		} else {
			fields["value"] = pt.Value
		}
		logrus.WithFields(fields).Info("metric")
	}
}

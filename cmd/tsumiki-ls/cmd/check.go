package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/tsumiki/tsumiki-ls/internal/config"
	"github.com/tsumiki/tsumiki-ls/internal/lint"
	"github.com/tsumiki/tsumiki-ls/internal/logging"
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Check source files for unmatched brackets",
		ArgsUsage: "[PATH|GLOB...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:  "color",
				Usage: "Colorize text output: auto, always, never",
			},
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "Files checked in parallel (0 = one per CPU)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			closer, err := logging.Setup(cfg.Log)
			if err != nil {
				return err
			}
			defer closer.Close()

			paths := cmd.Args().Slice()
			if len(paths) == 0 {
				// Default to the current directory
				paths = []string{"."}
			}
			jobs := cfg.Check.Jobs
			if jobs == 0 {
				jobs = runtime.NumCPU()
			}

			results, err := lint.Run(ctx, paths, jobs)
			if err != nil {
				return err
			}
			logrus.WithFields(logrus.Fields{"files": len(results), "jobs": jobs}).Debug("check finished")

			switch format := cmd.String("format"); format {
			case "json":
				err = lint.WriteJSON(os.Stdout, results)
			case "text":
				color := config.ColorEnabled(cfg.Check.Color, isatty.IsTerminal(os.Stdout.Fd()))
				err = lint.WriteText(os.Stdout, results, color)
			default:
				return fmt.Errorf("unknown format %q: want text or json", format)
			}
			if err != nil {
				return err
			}

			if lint.HasIssues(results) {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

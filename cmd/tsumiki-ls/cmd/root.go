package cmd

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tsumiki/tsumiki-ls/internal/config"
	"github.com/tsumiki/tsumiki-ls/internal/version"
)

// flagKeys maps command-line flags to configuration keys. A flag overrides
// the file and environment only when the user set it.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"log-format":   "log.format",
	"log-file":     "log.file",
	"framing":      "server.framing",
	"idle-timeout": "server.idle_timeout",
	"color":        "check.color",
	"jobs":         "check.jobs",
}

// NewApp creates the CLI application
func NewApp() *cli.Command {
	return &cli.Command{
		Name:    "tsumiki-ls",
		Usage:   "A lightweight language server for TypeScript, JavaScript and Kotlin",
		Version: version.Version(),
		Description: `tsumiki-ls answers completion, hover, definition, references, rename,
formatting and code action requests over the Language Server Protocol and
reports unmatched brackets as diagnostics.

Without a subcommand it serves LSP on stdio.

Examples:
  tsumiki-ls --stdio
  tsumiki-ls lsp --framing line --idle-timeout 10m
  tsumiki-ls check src/
  tsumiki-ls check --format json "src/**/*.kt"`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML config file (default: ./" + config.DefaultFileName + " if present)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: trace, debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format: text, json",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to this file instead of stderr",
			},
		}, serverFlags()...),
		Action: runLSP,
		Commands: []*cli.Command{
			lspCommand(),
			checkCommand(),
			versionCommand(),
		},
	}
}

// Execute runs the CLI application
func Execute() error {
	return NewApp().Run(context.Background(), os.Args)
}

// loadConfig resolves the configuration for cmd from defaults, the config
// file, the environment and the flags set on the command line.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		if cmd.IsSet(flag) {
			overrides[key] = cmd.Value(flag)
		}
	}
	return config.Load(config.Options{
		Path:  cmd.String("config"),
		Flags: overrides,
	})
}

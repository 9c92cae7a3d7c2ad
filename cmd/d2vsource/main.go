// Package main provides the CLI entry point for d2vsource.
package main

import (
	"fmt"
	"os"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, l10n.F("Error: %s", err))
		os.Exit(1)
	}
}

// newApp builds the command tree. Translations are registered in init, so
// usage strings are resolved here rather than at package level.
func newApp() *cli.App {
	return &cli.App{
		Name:    "d2vsource",
		Usage:   l10n.T("Frame accurate access to indexed MPEG-1/2 streams"),
		Version: version,
		Description: l10n.T("d2vsource decodes arbitrary frames of MPEG-1/2 streams split over several files, " +
			"using an index of GOP positions."),
		Flags:  globalFlags(),
		Before: validateGlobalFlags,
		Commands: []*cli.Command{
			infoCommand(),
			frameCommand(),
			sheetCommand(),
			serveCommand(),
			verifyCommand(),
			{
				Name:  "version",
				Usage: l10n.T("Show version information"),
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, l10n.F("d2vsource version %s", version))
					return nil
				},
			},
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    l10n.T("YAML configuration file"),
			Category: l10n.T("Configuration"),
		},
		&cli.StringFlag{
			Name:     "backend",
			Aliases:  []string{"b"},
			Usage:    l10n.T("Decode backend (auto, mpeg, ffmpeg)"),
			Category: l10n.T("Decoding"),
		},
		&cli.StringFlag{
			Name:     "ffmpeg-path",
			Usage:    l10n.T("Path to ffmpeg executable (falls back to FFMPEG_PATH env, then PATH)"),
			Category: l10n.T("Decoding"),
		},
		&cli.IntFlag{
			Name:     "scratch-size",
			Usage:    l10n.T("Read buffer size in bytes between the files and the demuxer"),
			Category: l10n.T("Decoding"),
		},
		&cli.BoolFlag{
			Name:     "cache",
			Usage:    l10n.T("Cache parsed indexes"),
			Category: l10n.T("Index cache"),
		},
		&cli.StringFlag{
			Name:     "cache-path",
			Usage:    l10n.T("Index cache database file"),
			Category: l10n.T("Index cache"),
		},
		&cli.StringFlag{
			Name:     "log-level",
			Aliases:  []string{"l"},
			Usage:    l10n.T("Log level (debug, info, warn, error)"),
			Category: l10n.T("Logging"),
		},
		&cli.BoolFlag{
			Name:     "quiet",
			Aliases:  []string{"q"},
			Usage:    l10n.T("Suppress all log output"),
			Category: l10n.T("Logging"),
		},
	}
}

func validateGlobalFlags(c *cli.Context) error {
	switch c.String("log-level") {
	case "", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("%s: %q", l10n.T("invalid log level"), c.String("log-level"))
	}
}

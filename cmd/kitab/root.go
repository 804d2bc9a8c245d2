package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/kitab/internal/api"
	"github.com/jackzampolin/kitab/internal/svcctx"
	"github.com/jackzampolin/kitab/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

// Commands annotate how much of the service graph they need. The value is
// inherited from the nearest ancestor that sets it.
const (
	annotationServices = "services"
	servicesNone       = "none" // skip service setup
	servicesBase       = "base" // home, logger and config only
)

var rootCmd = &cobra.Command{
	Use:   "kitab",
	Short: "Arabic scanned book ingestion with a vision oracle",
	Long: `Kitab turns scanned right-to-left Arabic books into searchable page text.

Each PDF page is rendered to an image, read by a vision model, normalized
and stored per physical page. Stored books can be exported to DOCX by
chapter or page range, and narrated to MP3.

Ingestion is sequential and resumable: re-running a range only processes
the pages that are not stored yet.`,
	Version:      version.GitRelease,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := api.ParseOutputFormat(outputFormat); err != nil {
			return err
		}

		level := servicesLevel(cmd)
		if level == servicesNone {
			return nil
		}

		logger, err := newLogger(logLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		var svcs *svcctx.Services
		if level == servicesBase {
			svcs, err = buildBaseServices(logger)
		} else {
			svcs, err = buildServices(cmd.Context(), logger)
		}
		if err != nil {
			return err
		}
		cmd.SetContext(svcctx.WithServices(cmd.Context(), svcs))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.kitab/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "kitab home directory (default: ~/.kitab)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", string(api.DefaultOutput), "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	rootCmd.AddCommand(versionCmd)
}

// servicesLevel walks up from cmd to find its services annotation.
func servicesLevel(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd:
			return servicesNone
		}
		if v, ok := c.Annotations[annotationServices]; ok {
			return v
		}
	}
	return ""
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

// printResult renders data to the command's stdout in the -o format.
func printResult(cmd *cobra.Command, data any) error {
	format, err := api.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}
	return api.NewPrinter(cmd.OutOrStdout(), format).Print(data)
}

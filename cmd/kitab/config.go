package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/kitab/internal/config"
	"github.com/jackzampolin/kitab/internal/home"
	"github.com/jackzampolin/kitab/internal/svcctx"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage kitab configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a default config file to ~/.kitab/config.yaml, or to the path
given with --config. An existing file is kept unless --force is set.`,
	Annotations: map[string]string{annotationServices: servicesNone},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			h, err := home.New(homeDir)
			if err != nil {
				return err
			}
			if err := h.EnsureExists(); err != nil {
				return fmt.Errorf("failed to create home directory: %w", err)
			}
			path = h.ConfigPath()
		}

		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration",
	Annotations: map[string]string{annotationServices: servicesBase},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgMgr := svcctx.ConfigFrom(cmd.Context())
		if f := cfgMgr.FileUsed(); f != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "# %s\n", f)
		}
		cfg := *cfgMgr.Get()
		cfg.Oracle.APIKeys = maskKeys(cfg.Oracle.APIKeys)
		cfg.Speech.OpenAIAPIKey = maskKeys([]string{cfg.Speech.OpenAIAPIKey})[0]
		return printResult(cmd, cfg)
	},
}

// maskKeys hides literal credentials and leaves ${ENV_VAR} references.
func maskKeys(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		if k == "" || strings.HasPrefix(k, "${") {
			out[i] = k
			continue
		}
		out[i] = "****"
	}
	return out
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

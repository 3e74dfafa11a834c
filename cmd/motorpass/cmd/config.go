package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/motorpass/internal/config"
	"github.com/MeKo-Tech/motorpass/internal/report"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or generate configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after merging defaults, the config file,
MOTORPASS_* environment variables and flags. The OCR.space API key is never
printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()
		format, err := outputFormat(cmd, cfg)
		if err != nil {
			return err
		}
		if format == report.FormatText {
			format = report.FormatYAML
		}
		if configLoader != nil {
			if used := configLoader.GetConfigFileUsed(); used != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "# config file: %s\n", used)
			}
		}
		masked := *cfg
		if masked.Remote.APIKey != "" {
			masked.Remote.APIKey = "****"
		}
		return writeOutputAs(cmd, cfg, format, masked)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [FILE]",
	Short: "Write a config file with every default value",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.GenerateDefaultConfigFile(path); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\nsearch paths: %s\n",
			path, strings.Join(config.GetConfigSearchPaths(), ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)
}

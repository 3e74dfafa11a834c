package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/motorpass/internal/config"
	"github.com/MeKo-Tech/motorpass/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// configErr holds the last load failure until PersistentPreRunE reports it.
	configErr error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "motorpass",
	Short: "Driver's license capture and verification for the motorcycle kiosk",
	Long: `motorpass reads a rider's driver's license, matches the printed name
against the registered rider and decides whether the rider may take a
motorcycle.

It provides:
- Text extraction through OCR.space with a local Tesseract fallback
- License field parsing (name, expiration, restricted permits)
- Fuzzy name matching tolerant of OCR noise
- A live capture loop that snaps the card once the reading is stable
- An HTTP and WebSocket server for the kiosk front end

Examples:
  motorpass verify license.jpg --name "Juan Dela Cruz" --helmet --credential 82
  motorpass capture ./frames --name "Juan Dela Cruz"
  motorpass serve --port 8080`,
	Version:      version.String(),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/motorpass, /etc/motorpass)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "write results to this file instead of stdout")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	// --format and --output are read per command (outputFormat, writeOutputAs)
	// so a bad value is reported by the command instead of failing validation.

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if globalConfig == nil && configErr == nil {
			initConfig()
		}
		if configErr != nil {
			return fmt.Errorf("error loading configuration: %w", configErr)
		}
		logLevel := slog.LevelInfo
		if globalConfig.Verbose {
			logLevel = slog.LevelDebug
		} else {
			switch globalConfig.LogLevel {
			case "debug":
				logLevel = slog.LevelDebug
			case "warn":
				logLevel = slog.LevelWarn
			case "error":
				logLevel = slog.LevelError
			}
		}
		// Results go to stdout; logs stay on stderr.
		logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))
		slog.SetDefault(logger)
		return nil
	}
}

// initConfig reads in config file and ENV variables if set. A failure is
// kept in configErr and returned by the root PersistentPreRunE.
func initConfig() {
	configLoader = config.NewLoader()

	if cfgFile != "" {
		globalConfig, configErr = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, configErr = configLoader.Load()
	}
	if configErr != nil {
		globalConfig = nil
	}
}

// GetConfig returns the global configuration, or the defaults when it could
// not be loaded.
func GetConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}
	if globalConfig == nil {
		def := config.DefaultConfig()
		return &def
	}
	return globalConfig
}

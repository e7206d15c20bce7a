package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/wikilight/internal/config"
	"github.com/conneroisu/wikilight/internal/logging"
	"github.com/conneroisu/wikilight/internal/tracing"
)

// ConfigFileEnv names a configuration file to use instead of .wikilight.yml.
const ConfigFileEnv = "WIKILIGHT_CONFIG_FILE"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wikilight",
	Short: "Syntax highlighting for MediaWiki markup",
	Long: `wikilight decorates MediaWiki markup with semantic HTML spans while
keeping the source text exactly as written, so the result can sit under an
editable textarea as a live overlay.

Quick Start:
  wikilight highlight page.wiki --page   Highlight a document to HTML
  wikilight serve page.wiki              Edit a document with live highlighting
  wikilight watch ./pages                Keep highlighted copies up to date
  wikilight rules                        List the highlighting rules`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .wikilight.yml, can also use "+ConfigFileEnv+" env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
}

// initConfig points viper at the configuration file and the environment.
//
// Configuration file priority (highest to lowest):
//  1. --config flag
//  2. WIKILIGHT_CONFIG_FILE environment variable
//  3. .wikilight.yml in the current directory
//
// A missing default file is not an error; defaults apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(ConfigFileEnv); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".wikilight")
	}

	config.SetupEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig binds the command's flags to their configuration keys and
// loads the merged configuration.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	bindings["log-level"] = "logging.level"
	bindings["log-format"] = "logging.format"
	if err := SetViperBindings(cmd, bindings); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the command logger. Logs go to stderr so they never mix
// with documents written to stdout.
func newLogger(cmd *cobra.Command, cfg *config.Config) logging.Logger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Logging.Format,
		Output:    cmd.ErrOrStderr(),
		Component: cmd.Name(),
	})
}

func newTracing(cfg *config.Config, stderr io.Writer) (*tracing.Provider, error) {
	provider, err := tracing.NewProvider(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		FilePath:    cfg.Tracing.FilePath,
		ServiceName: cfg.Tracing.ServiceName,
		Writer:      stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	return provider, nil
}

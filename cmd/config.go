package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/wikilight/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect wikilight configuration",
	Long: `Inspect and validate wikilight configuration.

Examples:
  wikilight config show                       # Resolved configuration as YAML
  wikilight config show -o json               # ... as JSON
  wikilight config validate                   # Validate .wikilight.yml
  wikilight config validate --file other.yml  # Validate a specific file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Display the configuration after defaults, the configuration file,
WIKILIGHT_ environment variables and flags have been applied.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a wikilight configuration file and report errors and warnings
with suggestions.

Examples:
  wikilight config validate
  wikilight config validate --file config.yml --strict`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var (
	configFormat string
	configFile   string
	configStrict bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowCmd.Flags().StringVarP(&configFormat, "output", "o", "yaml", "Output format (yaml, json)")
	AddFlagValidation(configShowCmd, "output", func(format string) error {
		return ValidateFormat(format, []string{"yaml", "json"})
	})

	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: .wikilight.yml)")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(configFormat) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	default:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(cfg)
	}
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	targetFile := configFile
	if targetFile == "" {
		for _, candidate := range []string{".wikilight.yml", ".wikilight.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				targetFile = candidate
				break
			}
		}
		if targetFile == "" {
			return fmt.Errorf("no configuration file found, use --file to specify one")
		}
	}
	if err := ValidateFileExists(targetFile); err != nil {
		return err
	}

	fmt.Fprintf(out, "Validating configuration file: %s\n", targetFile)

	v := viper.New()
	v.SetConfigFile(targetFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}
	config.SetDefaults(v)

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	validation := config.ValidateWithDetails(&cfg)
	if !validation.HasErrors() && !validation.HasWarnings() {
		fmt.Fprintln(out, "Configuration is valid.")
		return nil
	}

	fmt.Fprint(out, validation.String())
	if validation.HasErrors() {
		return fmt.Errorf("configuration validation failed with %d errors", len(validation.Errors))
	}
	if configStrict {
		return fmt.Errorf("configuration validation failed in strict mode with %d warnings",
			len(validation.Warnings))
	}
	fmt.Fprintf(out, "Configuration is valid with %d warnings.\n", len(validation.Warnings))
	return nil
}

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/wikilight/internal/highlight"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the highlighting rules",
	Long: `List the highlighting rules in the order they are applied, highest
priority first, with the classes each one emits.

Examples:
  wikilight rules            # Table
  wikilight rules -o json    # JSON
  wikilight rules -o yaml    # YAML`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

var rulesFlags *StandardFlags

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesFlags = AddStandardFlags(rulesCmd, "output")
}

func runRules(cmd *cobra.Command, args []string) error {
	rules := highlight.Default().Rules()
	out := cmd.OutOrStdout()

	switch strings.ToLower(rulesFlags.OutputFormat) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rules)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(rules)
	case "table":
		return outputRulesTable(out, rules)
	default:
		return fmt.Errorf("unsupported format: %s", rulesFlags.OutputFormat)
	}
}

var titleCaser = cases.Title(language.English)

// displayName turns a rule name such as "external-link" into "External Link".
func displayName(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "-", " "))
}

func outputRulesTable(out io.Writer, rules []highlight.RuleInfo) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RULE\tPRIORITY\tCLASSES")
	for _, rule := range rules {
		fmt.Fprintf(w, "%s\t%d\t%s\n", displayName(rule.Name), rule.Priority, strings.Join(rule.Classes, " "))
	}
	return w.Flush()
}

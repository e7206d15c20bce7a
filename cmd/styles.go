package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conneroisu/wikilight/internal/highlight"
	"github.com/conneroisu/wikilight/internal/styles"
)

var stylesCmd = &cobra.Command{
	Use:   "styles",
	Short: "Print the highlighter stylesheet",
	Long: `Print the CSS that styles every class the highlighter emits.

Examples:
  wikilight styles > mediawiki.css
  wikilight styles audit             # Check every rule's classes have styles
  wikilight styles audit page.wiki   # Also check the classes page.wiki uses`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := io.WriteString(cmd.OutOrStdout(), styles.Stylesheet())
		return err
	},
}

var stylesAuditCmd = &cobra.Command{
	Use:   "audit [file]",
	Short: "Report highlight classes the stylesheet does not style",
	Long: `Compare the stylesheet's selectors with the classes the highlighting
rules can emit. With a file argument, the classes its highlighted form actually
uses are checked too. Exits with an error when any class is unstyled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStylesAudit,
}

func init() {
	rootCmd.AddCommand(stylesCmd)
	stylesCmd.AddCommand(stylesAuditCmd)
}

func runStylesAudit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	vocabulary := highlight.Default().Classes()

	missing, err := styles.Missing(vocabulary)
	if err != nil {
		return fmt.Errorf("failed to parse stylesheet: %w", err)
	}
	fmt.Fprintf(out, "Rule classes: %d, unstyled: %d\n", len(vocabulary), len(missing))
	for _, class := range missing {
		fmt.Fprintf(out, "  - %s\n", class)
	}

	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		used, err := styles.ClassesInHTML(highlight.Highlight(string(data)))
		if err != nil {
			return fmt.Errorf("failed to scan highlighted output: %w", err)
		}
		unstyled, err := styles.MissingFrom(styles.Stylesheet(), used)
		if err != nil {
			return fmt.Errorf("failed to parse stylesheet: %w", err)
		}
		fmt.Fprintf(out, "%s uses %d classes: %s\n", args[0], len(used), strings.Join(used, " "))
		for _, class := range unstyled {
			fmt.Fprintf(out, "  - %s (unstyled)\n", class)
		}
		missing = append(missing, unstyled...)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%d highlight classes have no style rule", len(missing))
	}
	fmt.Fprintln(out, "All highlight classes are styled.")
	return nil
}

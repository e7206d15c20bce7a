package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/conneroisu/wikilight/internal/highlight"
	"github.com/conneroisu/wikilight/internal/renderer"
	"github.com/conneroisu/wikilight/internal/styles"
	"github.com/conneroisu/wikilight/internal/tracing"
)

var highlightCmd = &cobra.Command{
	Use:     "highlight [file]",
	Aliases: []string{"hl"},
	Short:   "Highlight a MediaWiki document to HTML",
	Long: `Highlight MediaWiki markup and write the decorated HTML to stdout.

The input is read from the file argument or from stdin. The output has
exactly the visible text of the input, wrapped in <span class="mw-..."> elements.

Examples:
  wikilight highlight page.wiki                 # HTML fragment
  wikilight highlight page.wiki --page          # Standalone page with styles
  cat page.wiki | wikilight highlight --sanitize`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHighlight,
}

var (
	highlightPage     bool
	highlightSanitize bool
	highlightTitle    string
)

func init() {
	rootCmd.AddCommand(highlightCmd)

	highlightCmd.Flags().BoolVar(&highlightPage, "page", false, "Write a standalone HTML page with the stylesheet inlined")
	highlightCmd.Flags().BoolVar(&highlightSanitize, "sanitize", false, "Strip anything the highlighter would not emit from the output")
	highlightCmd.Flags().StringVar(&highlightTitle, "title", "", "Page title for --page (default is the file name)")
}

func runHighlight(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{"sanitize": "highlight.sanitize"})
	if err != nil {
		return err
	}
	log := newLogger(cmd, cfg)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var input []byte
	name := "stdin"
	if len(args) == 1 {
		name = filepath.Base(args[0])
		input, err = os.ReadFile(args[0])
	} else {
		input, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	engine, err := highlight.NewEngine(highlight.WithMatchTimeout(cfg.Highlight.MatchTimeout))
	if err != nil {
		return err
	}
	provider, err := newTracing(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			log.Warn(ctx, err, "Failed to flush traces")
		}
	}()

	res := tracing.NewHighlighter(engine, provider.Tracer()).RunContext(ctx, string(input))
	for _, failure := range res.Failures {
		log.Warn(ctx, failure, "Highlight rule skipped", "input", name)
	}

	html := res.HTML
	if cfg.Highlight.Sanitize {
		html = highlight.NewSanitizer().Sanitize(html)
	}

	out := cmd.OutOrStdout()
	if !highlightPage {
		_, err = io.WriteString(out, html)
		return err
	}

	title := highlightTitle
	if title == "" {
		title = name
	}
	return renderer.Document(title, styles.Stylesheet(), html).Render(ctx, out)
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/wikilight/internal/config"
	"github.com/conneroisu/wikilight/internal/highlight"
	"github.com/conneroisu/wikilight/internal/logging"
	"github.com/conneroisu/wikilight/internal/renderer"
	"github.com/conneroisu/wikilight/internal/styles"
	"github.com/conneroisu/wikilight/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Keep highlighted copies of a directory of wiki documents",
	Long: `Highlight every wiki document under a directory into standalone HTML
pages, then keep them up to date as the documents change.

Each document <dir>/a/b.wiki is written to <out>/a/b.wiki.html. Deleting a
document deletes its page.

Examples:
  wikilight watch ./pages                  # Write to ./highlighted
  wikilight watch ./pages --out ./site     # Custom output directory
  wikilight watch ./pages --once           # Highlight once and exit`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var watchOnce bool

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("out", "", "Output directory (default from watch.output_dir)")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Highlight the directory once and exit")
}

// pageWriter renders wiki documents under root to HTML pages under out.
type pageWriter struct {
	root   string
	out    string
	accept watcher.FileFilter
	engine *highlight.Cache
	log    logging.Logger
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{"out": "watch.output_dir"})
	if err != nil {
		return err
	}
	log := newLogger(cmd, cfg)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	root, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid directory %s: %w", args[0], err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("not a directory: %s", args[0])
	}

	pw, err := newPageWriter(root, cfg, log)
	if err != nil {
		return err
	}
	count, err := pw.writeAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Highlighted %d documents into %s\n", count, pw.out)
	if watchOnce {
		return nil
	}

	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, watcher.WithLogger(log))
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(pw.accept)
	fileWatcher.AddHandler(func(events []watcher.ChangeEvent) error {
		return pw.apply(ctx, events)
	})
	if err := fileWatcher.AddRecursive(root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes... (Press Ctrl+C to stop)")

	<-ctx.Done()
	return nil
}

func newPageWriter(root string, cfg *config.Config, log logging.Logger) (*pageWriter, error) {
	out, err := filepath.Abs(cfg.Watch.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("invalid output directory %s: %w", cfg.Watch.OutputDir, err)
	}
	engine, err := highlight.NewEngine(highlight.WithMatchTimeout(cfg.Highlight.MatchTimeout))
	if err != nil {
		return nil, err
	}
	cache, err := highlight.NewCache(engine, cfg.Highlight.CacheSize)
	if err != nil {
		return nil, err
	}

	extensions := watcher.ExtensionFilter(cfg.Watch.Extensions...)
	return &pageWriter{
		root: root,
		out:  out,
		accept: func(path string) bool {
			return extensions(path) && watcher.NoHiddenFilter(path)
		},
		engine: cache,
		log:    log,
	}, nil
}

// target maps a document to its page path.
func (pw *pageWriter) target(path string) (string, error) {
	rel, err := filepath.Rel(pw.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside %s", path, pw.root)
	}
	return filepath.Join(pw.out, rel+".html"), nil
}

func (pw *pageWriter) writeAll(ctx context.Context) (int, error) {
	count := 0
	err := filepath.WalkDir(pw.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == pw.out || (path != pw.root && strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !pw.accept(path) {
			return nil
		}
		if err := pw.write(ctx, path); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func (pw *pageWriter) apply(ctx context.Context, events []watcher.ChangeEvent) error {
	for _, event := range events {
		var err error
		switch event.Type {
		case watcher.EventTypeDeleted, watcher.EventTypeRenamed:
			err = pw.remove(event.Path)
		default:
			err = pw.write(ctx, event.Path)
		}
		if err != nil {
			pw.log.Error(ctx, err, "Failed to update page", "path", event.Path, "event", event.Type.String())
		}
	}
	return nil
}

func (pw *pageWriter) write(ctx context.Context, path string) error {
	target, err := pw.target(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return pw.remove(path)
		}
		return err
	}

	res := pw.engine.Run(string(data))
	for _, failure := range res.Failures {
		pw.log.Warn(ctx, failure, "Highlight rule skipped", "path", path)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if err := pw.render(ctx, f, filepath.Base(path), res.HTML); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	pw.log.Debug(ctx, "Wrote page", "path", path, "target", target)
	return nil
}

func (pw *pageWriter) render(ctx context.Context, w io.Writer, title, html string) error {
	return renderer.Document(title, styles.Stylesheet(), html).Render(ctx, w)
}

func (pw *pageWriter) remove(path string) error {
	target, err := pw.target(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

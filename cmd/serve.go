package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/wikilight/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Start the live highlighting editor",
	Long: `Start an HTTP server with a browser editor that highlights MediaWiki
markup as you type.

With a file argument the editor opens that document, and changes made to the
file on disk are pushed to every open editor.

Examples:
  wikilight serve                   # Empty editor on localhost:8080
  wikilight serve page.wiki         # Edit page.wiki
  wikilight serve -p 3000 --host 0.0.0.0`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	AddStandardFlags(serveCmd, "server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, map[string]string{
		"port": "server.port",
		"host": "server.host",
	})
	if err != nil {
		return err
	}
	log := newLogger(cmd, cfg)

	provider, err := newTracing(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(log),
		server.WithTracer(provider.Tracer()),
	}
	if len(args) == 1 {
		if err := ValidateFileExists(args[0]); err != nil {
			return err
		}
		opts = append(opts, server.WithFile(args[0]))
	}

	srv, err := server.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Starting wikilight editor at http://%s\n", cfg.Server.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		log.Info(context.Background(), "Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, err, "Error during server shutdown")
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, err, "Failed to flush traces")
	}

	if serveErr != nil {
		return fmt.Errorf("server error: %w", serveErr)
	}
	return nil
}

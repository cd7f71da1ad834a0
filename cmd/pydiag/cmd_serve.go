package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dejo1307/pydiag/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	eng, err := newEngine(false)
	if err != nil {
		return err
	}

	opts := []server.Option{server.WithLogger(logger)}
	if store, err := openSessions(); err != nil {
		logger.Warn("session history unavailable", zap.Error(err))
	} else {
		defer store.Close()
		opts = append(opts, server.WithSessions(store))
	}

	srv, err := server.New(eng, cfg, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}

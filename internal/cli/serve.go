package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/grind-ai/grind/internal/server"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and the Telegram worker",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "addr", "a", "", "Listen address (default: server.addr from the config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := listenAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	srv := server.New(server.Config{
		Processor: a.orch,
		Backends:  a.router,
		Stats:     a.stats,
		Usage:     a.usage,
		DBPath:    cfg.Paths.Database,
		Version:   VersionString(),
		Logger:    logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	a.startTelegram(gctx, g)
	g.Go(func() error { return srv.ListenAndServe(gctx, addr) })

	logger.Info("serving", zap.String("addr", addr))
	err = g.Wait()
	logger.Info("shutting down")
	return err
}

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/grind-ai/grind/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:         "chat",
	Short:       "Chat in the console, with the Telegram worker in the background",
	Annotations: map[string]string{annotationFileLog: "true"},
	RunE:        runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	a.startTelegram(gctx, g)

	consoleErr := tui.Run(ctx, a.orch)
	cancel()
	if err := g.Wait(); err != nil {
		logger.Warn("background worker stopped", zap.Error(err))
	}
	return consoleErr
}

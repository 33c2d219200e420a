package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/grind-ai/grind/internal/config"
	"github.com/grind-ai/grind/internal/logging"
)

// Dispatcher answers queued messages one at a time.
type Dispatcher struct {
	client    Client
	responder Responder
	parseMode string
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher replying through client.
func NewDispatcher(client Client, responder Responder, parseMode string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		client:    client,
		responder: responder,
		parseMode: parseMode,
		logger:    logger.Named("telegram.dispatcher"),
	}
}

// Run drains queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, queue <-chan Incoming) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case in := <-queue:
			d.handle(ctx, in)
		}
	}
}

// handle replies to one message. Send failures are logged and dropped.
func (d *Dispatcher) handle(ctx context.Context, in Incoming) {
	reply := d.responder.Respond(ctx, in.Text)

	msg := tgbotapi.NewMessage(in.ChatID, reply)
	msg.ParseMode = d.parseMode

	if _, err := d.client.Send(msg); err != nil {
		d.logger.Error("send failed", zap.Int64("chat_id", in.ChatID), zap.Error(err))
		return
	}
	d.logger.Info("reply sent", zap.Int64("chat_id", in.ChatID), zap.String("text", logging.Truncate(reply, 100)))
}

// Worker runs a Poller and a Dispatcher joined by a bounded queue.
type Worker struct {
	poller     *Poller
	dispatcher *Dispatcher
	queue      chan Incoming
}

// NewWorker wires a poller and dispatcher on client.
func NewWorker(client Client, responder Responder, cfg config.TelegramConfig, logger *zap.Logger) *Worker {
	size := cfg.QueueSize
	if size < 1 {
		size = 1
	}
	queue := make(chan Incoming, size)
	return &Worker{
		poller:     NewPoller(client, cfg, queue, logger),
		dispatcher: NewDispatcher(client, responder, cfg.ParseMode, logger),
		queue:      queue,
	}
}

// Run blocks until ctx is cancelled and both loops have returned.
// Queued messages not yet answered are dropped.
func (w *Worker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.poller.Run(gctx) })
	g.Go(func() error { return w.dispatcher.Run(gctx, w.queue) })

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

package telegram

import (
	"context"
	"net"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/grind-ai/grind/internal/config"
	"github.com/grind-ai/grind/internal/errors"
	"github.com/grind-ai/grind/internal/logging"
)

// Incoming is one text message waiting for a reply.
type Incoming struct {
	UpdateID int
	ChatID   int64
	Text     string
}

// Poller long-polls getUpdates and queues every text message.
type Poller struct {
	client Client
	cfg    config.TelegramConfig
	queue  chan<- Incoming
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration)

	offset int
}

// NewPoller creates a poller pushing to queue.
func NewPoller(client Client, cfg config.TelegramConfig, queue chan<- Incoming, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		client: client,
		cfg:    cfg,
		queue:  queue,
		logger: logger.Named("telegram.poller"),
		sleep:  sleepContext,
	}
}

// Run polls until ctx is cancelled. Failures are logged and retried
// after a fixed delay.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("polling started", zap.Int("timeout_seconds", p.cfg.PollTimeoutSeconds))
	for {
		if err := ctx.Err(); err != nil {
			p.logger.Info("polling stopped")
			return err
		}

		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			delay := p.retryDelay(err)
			p.logger.Warn("poll failed", zap.Duration("retry_in", delay), zap.Error(err))
			p.sleep(ctx, delay)
		}
	}
}

// poll fetches one batch and queues its text messages. A full queue
// blocks until the dispatcher catches up.
func (p *Poller) poll(ctx context.Context) error {
	u := tgbotapi.NewUpdate(p.offset)
	u.Timeout = p.cfg.PollTimeoutSeconds

	updates, err := p.client.GetUpdates(u)
	if err != nil {
		return pollError(err)
	}

	for _, update := range updates {
		if update.UpdateID >= p.offset {
			p.offset = update.UpdateID + 1
		}

		msg := update.Message
		if msg == nil || msg.Chat == nil || msg.Chat.ID == 0 || msg.Text == "" {
			continue
		}

		in := Incoming{UpdateID: update.UpdateID, ChatID: msg.Chat.ID, Text: msg.Text}
		p.logger.Info("message received", zap.Int64("chat_id", in.ChatID), zap.String("text", logging.Truncate(in.Text, 100)))

		select {
		case p.queue <- in:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// pollError marks a 429 reply as rate limited, keeping the retry_after
// Telegram sent with it.
func pollError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return errors.NewBuilder(errors.CodeTransportPoll, "telegram rate limited").
			RateLimit(time.Duration(apiErr.RetryAfter) * time.Second).
			Wrap(err).
			Build()
	}
	return err
}

// retryDelay honours a rate limit's retry_after. Otherwise it is short
// for API rejections and timeouts and longer for everything else.
func (p *Poller) retryDelay(err error) time.Duration {
	if errors.GetCategory(err) == errors.CategoryRateLimit {
		var appErr *errors.AppError
		if errors.As(err, &appErr) && appErr.RetryAfter > 0 {
			return appErr.RetryAfter
		}
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return p.cfg.RetryDelay()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.cfg.RetryDelay()
	}
	return p.cfg.ErrorDelay()
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Package telegram runs GRIND's background message transport: a long
// polling receiver feeding a bounded queue drained by a dispatcher.
package telegram

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/grind-ai/grind/internal/config"
	"github.com/grind-ai/grind/internal/errors"
)

// Client is the part of the Bot API the worker uses. *tgbotapi.BotAPI
// implements it.
type Client interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Responder answers one message. *agent.Orchestrator implements it.
type Responder interface {
	Respond(ctx context.Context, input string) string
}

// pollSlack is added to the long-poll timeout for the HTTP client deadline.
const pollSlack = 10 * time.Second

// contextClient binds every Bot API request to ctx so a cancelled
// worker aborts an in-flight long poll.
type contextClient struct {
	ctx    context.Context
	client *http.Client
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// NewBotClient connects to the Bot API. Requests made through the
// returned client are cancelled with ctx.
func NewBotClient(ctx context.Context, cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	if cfg.Token == "" {
		return nil, errors.MissingCredential("TELEGRAM_TOKEN")
	}
	httpClient := &http.Client{Timeout: time.Duration(cfg.PollTimeoutSeconds)*time.Second + pollSlack}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, contextClient{ctx: ctx, client: httpClient})
	if err != nil {
		return nil, errors.NewBuilder(errors.CodeTransportPoll, "telegram bot login failed").
			Permanent().
			Wrap(err).
			WithSuggestion("check TELEGRAM_TOKEN").
			Build()
	}
	return bot, nil
}

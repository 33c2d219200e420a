package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/grind-ai/grind/internal/agent"
	"github.com/grind-ai/grind/internal/config"
	"github.com/grind-ai/grind/internal/embedding"
	"github.com/grind-ai/grind/internal/errors"
	"github.com/grind-ai/grind/internal/memory"
	"github.com/grind-ai/grind/internal/mirror"
	"github.com/grind-ai/grind/internal/model"
	"github.com/grind-ai/grind/internal/persona"
	"github.com/grind-ai/grind/internal/prompt"
	"github.com/grind-ai/grind/internal/search"
	"github.com/grind-ai/grind/internal/stats"
	"github.com/grind-ai/grind/internal/telegram"
	"github.com/grind-ai/grind/internal/usage"
)

// app holds everything a command needs to answer messages.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	store  *memory.Store
	router *model.Router
	stats  *stats.Collector
	usage  *usage.Tracker
	orch   *agent.Orchestrator
	redis  *redis.Client
}

// newApp opens memory and wires the backends, persona and mirrors into
// an orchestrator.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := memory.Open(cfg.Paths.Database)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		stats:  stats.NewCollector(),
	}

	now, err := clock(cfg.User.Timezone)
	if err != nil {
		store.Close()
		return nil, err
	}

	groq := model.NewGroqClient(cfg.Models.Groq)
	gemini, err := model.NewGeminiClient(ctx, cfg.Models.Gemini)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	ollama := model.NewOllamaProcess(cfg.Models.Ollama)
	a.usage = usage.NewTracker(ollama.Name())
	a.usage.SetClock(now)

	chain := model.NewChain(breakerConfig(cfg.Models.Breaker), a.stats, logger)
	a.router = model.NewRouter(chain, groq, logger)
	a.router.SetChain(model.KindLogic, model.NewHuggingFaceClient(cfg.Models.HuggingFace))
	a.router.SetChain(model.KindProse, ollama)
	a.router.SetChain(model.KindLongContext, gemini)
	a.router.SetChain(model.KindSearch, search.NewSerpAPI(cfg.Search), search.NewDuckDuckGo(cfg.Search))

	reminders := memory.NewReminderStore(store.DB())
	a.watchReminders(reminders)

	prompts := prompt.NewBuilder()
	a.orch = agent.New(&agent.Config{
		Preferences:   memory.NewPreferenceStore(store.DB()),
		Reminders:     reminders,
		Conversations: memory.NewConversationStore(store.DB(), logger, a.conversationOptions(ctx, now)...),
		Router:        a.router,
		Persona:       persona.NewComposer(groq, prompts, logger),
		Prompts:       prompts,
		Sinks:         a.sinks(),
		Stats:         a.stats,
		Usage:         a.usage,
		Logger:        logger,
		DefaultTitle:  cfg.User.DefaultTitle,
		SearchResults: cfg.Memory.SearchResults,
		Now:           now,
	})

	logger.Info("grind ready",
		zap.String("database", cfg.Paths.Database),
		zap.Int("backends", len(a.router.Status())),
	)
	return a, nil
}

// conversationOptions enables semantic recall when a Gemini key and an
// embedding model are configured.
func (a *app) conversationOptions(ctx context.Context, now func() time.Time) []memory.ConversationOption {
	opts := []memory.ConversationOption{memory.WithClock(now)}

	if a.cfg.Models.Gemini.APIKey == "" || a.cfg.Memory.EmbeddingModel == "" {
		a.logger.Info("embeddings disabled, recall uses keywords")
		return opts
	}
	engine, err := embedding.NewGenAIEngine(ctx, embedding.Config{
		APIKey: a.cfg.Models.Gemini.APIKey,
		Model:  a.cfg.Memory.EmbeddingModel,
	})
	if err != nil {
		a.logger.Warn("embeddings unavailable, recall uses keywords", zap.Error(err))
		return opts
	}
	return append(opts, memory.WithEmbedder(engine))
}

// sinks returns the configured conversation mirrors.
func (a *app) sinks() []mirror.Sink {
	var sinks []mirror.Sink
	if a.cfg.Mirror.Notion.Enabled() {
		sinks = append(sinks, mirror.NewNotion(a.cfg.Mirror.Notion))
	}
	if a.cfg.Mirror.Redis.Addr != "" {
		a.redis = mirror.NewRedisClient(a.cfg.Mirror.Redis)
		sinks = append(sinks, mirror.NewRedisStream(a.redis, a.cfg.Mirror.Redis))
	}
	for _, s := range sinks {
		a.logger.Info("mirror enabled", zap.String("sink", s.Name()))
	}
	return sinks
}

// watchReminders exposes the undelivered reminder count on /metrics.
func (a *app) watchReminders(reminders *memory.ReminderStore) {
	a.stats.Registry().MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "grind_reminders_pending",
		Help: "Reminders waiting for delivery",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		n, err := reminders.Pending(ctx)
		if err != nil {
			a.logger.Warn("count pending reminders failed", zap.Error(err))
			return 0
		}
		return float64(n)
	}))
}

// startTelegram runs the Telegram worker in g when a token is configured.
// A bad token is logged and the other surfaces keep running.
func (a *app) startTelegram(ctx context.Context, g *errgroup.Group) {
	if a.cfg.Telegram.Token == "" {
		a.logger.Info("telegram disabled")
		return
	}
	bot, err := telegram.NewBotClient(ctx, a.cfg.Telegram)
	if err != nil {
		a.logger.Error("telegram unavailable", zap.Error(err))
		return
	}
	a.logger.Info("telegram bot connected", zap.String("username", bot.Self.UserName))

	w := telegram.NewWorker(bot, a.orch, a.cfg.Telegram, a.logger)
	g.Go(func() error { return w.Run(ctx) })
}

// Close releases the database and the mirror connections.
func (a *app) Close() error {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	return a.store.Close()
}

func breakerConfig(b config.BreakerConfig) *errors.CircuitBreakerConfig {
	bc := errors.DefaultCircuitBreakerConfig()
	if b.MaxFailures > 0 {
		bc.MaxFailures = b.MaxFailures
	}
	if b.ResetTimeoutSeconds > 0 {
		bc.ResetTimeout = time.Duration(b.ResetTimeoutSeconds) * time.Second
	}
	return bc
}

// clock returns a wall clock in the configured zone.
func clock(zone string) (func() time.Time, error) {
	if zone == "" || zone == "Local" {
		return time.Now, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, errors.NewBuilder(errors.CodeConfigInvalid, "unknown timezone "+zone).
			Permanent().
			Wrap(err).
			Build()
	}
	return func() time.Time { return time.Now().In(loc) }, nil
}

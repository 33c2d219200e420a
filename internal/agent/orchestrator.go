// Package agent provides the Orchestrator, GRIND's single conversation
// pipeline shared by the console, the HTTP API and Telegram.
//
// Each message goes through:
//   - due reminder delivery
//   - naming and reminder commands, answered from memory
//   - routing to a backend chain with recalled context
//   - persona rewrite
//   - persistence and mirroring
//
// Every stage degrades to a string. Respond never fails.
package agent

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/grind-ai/grind/internal/logging"
	"github.com/grind-ai/grind/internal/memory"
	"github.com/grind-ai/grind/internal/mirror"
	"github.com/grind-ai/grind/internal/model"
	"github.com/grind-ai/grind/internal/prompt"
	"github.com/grind-ai/grind/internal/stats"
	"github.com/grind-ai/grind/internal/usage"
)

// Preferences stores user settings.
type Preferences interface {
	Set(ctx context.Context, key, value string) error
	GetOr(ctx context.Context, key, fallback string) (string, error)
}

// Reminders stores pending reminders.
type Reminders interface {
	Add(ctx context.Context, content string, dueAt time.Time) (memory.Reminder, error)
	PopDue(ctx context.Context, now time.Time) ([]memory.Reminder, error)
}

// Conversations stores and recalls past exchanges.
type Conversations interface {
	Append(ctx context.Context, input, response string) (memory.Record, error)
	Search(ctx context.Context, query string, n int) ([]memory.Record, error)
}

// Answerer routes a message to a backend chain. *model.Router
// implements it.
type Answerer interface {
	Generate(ctx context.Context, input, prompt string) (model.RoutingDecision, model.Result)
}

// Composer restyles a raw answer. *persona.Composer implements it.
type Composer interface {
	Compose(ctx context.Context, input, raw, title string) string
}

// Recorder receives orchestration metrics. *stats.Collector implements it.
type Recorder interface {
	RecordRequest(d time.Duration)
	RecordError()
	RecordRoute(kind string)
	RecordReminders(n int)
}

// UsageRecorder counts answered requests per backend. *usage.Tracker
// implements it.
type UsageRecorder interface {
	Record(backend string, tokens int)
}

// Config configures the Orchestrator.
type Config struct {
	Preferences   Preferences
	Reminders     Reminders
	Conversations Conversations
	Commands      *memory.CommandRouter
	Router        Answerer
	Persona       Composer
	Prompts       *prompt.Builder
	Sinks         []mirror.Sink
	Stats         Recorder
	Usage         UsageRecorder
	Logger        *zap.Logger

	// DefaultTitle is used until the user picks one. Defaults to "jefe".
	DefaultTitle string
	// SearchResults is how many past exchanges are recalled. Defaults to 2.
	SearchResults int
	// Now is the wall clock. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator turns one user message into one reply.
type Orchestrator struct {
	prefs         Preferences
	reminders     Reminders
	conversations Conversations
	commands      *memory.CommandRouter
	router        Answerer
	persona       Composer
	prompts       *prompt.Builder
	sinks         []mirror.Sink
	stats         Recorder
	usage         UsageRecorder
	logger        *zap.Logger

	defaultTitle  string
	searchResults int
	now           func() time.Time
}

// New creates an Orchestrator. Router is required; every other
// dependency may be nil and its stage is skipped.
func New(cfg *Config) *Orchestrator {
	o := &Orchestrator{
		prefs:         cfg.Preferences,
		reminders:     cfg.Reminders,
		conversations: cfg.Conversations,
		commands:      cfg.Commands,
		router:        cfg.Router,
		persona:       cfg.Persona,
		prompts:       cfg.Prompts,
		sinks:         cfg.Sinks,
		stats:         cfg.Stats,
		usage:         cfg.Usage,
		logger:        cfg.Logger,
		defaultTitle:  cfg.DefaultTitle,
		searchResults: cfg.SearchResults,
		now:           cfg.Now,
	}
	if o.commands == nil {
		o.commands = memory.NewCommandRouter()
	}
	if o.prompts == nil {
		o.prompts = prompt.NewBuilder()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.Named("orchestrator")
	if o.defaultTitle == "" {
		o.defaultTitle = "jefe"
	}
	if o.searchResults <= 0 {
		o.searchResults = 2
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Response describes how a reply was produced.
type Response struct {
	Message    string                 `json:"response"`
	Route      *model.RoutingDecision `json:"route,omitempty"` // nil when memory answered
	Backend    string                 `json:"backend,omitempty"`
	Reminders  int                    `json:"reminders,omitempty"`
	RecordID   string                 `json:"record_id,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
}

// Respond returns the reply to input.
func (o *Orchestrator) Respond(ctx context.Context, input string) string {
	return o.Process(ctx, input).Message
}

// Process runs the full pipeline and reports what happened.
func (o *Orchestrator) Process(ctx context.Context, input string) *Response {
	start := time.Now()
	now := o.now()
	o.logger.Info("message received", zap.String("input", logging.Truncate(input, 100)))

	resp := &Response{}
	reminderBlock := o.deliverReminders(ctx, now, resp)

	var answer string
	if reply, ok := o.handleCommand(ctx, input, now); ok {
		answer = reply
	} else {
		answer = o.answer(ctx, input, resp)
	}

	resp.Message = reminderBlock + answer
	resp.RecordID = o.persist(ctx, input, resp.Message)
	elapsed := time.Since(start)
	resp.DurationMs = elapsed.Milliseconds()

	if o.stats != nil {
		o.stats.RecordRequest(elapsed)
	}
	o.logger.Info("replying", zap.String("response", logging.Truncate(resp.Message, 100)), zap.Int64("duration_ms", resp.DurationMs))
	return resp
}

// deliverReminders pops every due reminder and renders the block that
// precedes the reply.
func (o *Orchestrator) deliverReminders(ctx context.Context, now time.Time, resp *Response) string {
	if o.reminders == nil {
		return ""
	}
	due, err := o.reminders.PopDue(ctx, now)
	if err != nil {
		o.logger.Error("reminder check failed", zap.Error(err))
		return ""
	}
	if len(due) == 0 {
		return ""
	}

	resp.Reminders = len(due)
	if o.stats != nil {
		o.stats.RecordReminders(len(due))
	}
	o.logger.Info("delivering reminders", zap.Int("count", len(due)))

	lines := make([]string, len(due))
	for i, r := range due {
		lines[i] = "🔔 " + r.Content
	}
	return "\n\n[RECORDATORIOS PENDIENTES]\n" + strings.Join(lines, "\n") + "\n---\n"
}

// handleCommand answers naming and reminder requests from memory.
func (o *Orchestrator) handleCommand(ctx context.Context, input string, now time.Time) (string, bool) {
	cmd := o.commands.Match(input, now)

	switch cmd.Kind {
	case memory.CommandSetTitle:
		if o.prefs != nil {
			if err := o.prefs.Set(ctx, memory.KeyUserTitle, cmd.Title); err != nil {
				o.logger.Error("save title failed", zap.String("title", cmd.Title), zap.Error(err))
			}
		}
		o.logger.Info("title updated", zap.String("title", cmd.Title))
		return cmd.Reply, true

	case memory.CommandAskTitle:
		return cmd.Reply, true

	case memory.CommandReminder:
		if o.reminders != nil {
			if _, err := o.reminders.Add(ctx, cmd.Content, cmd.DueAt); err != nil {
				o.logger.Error("save reminder failed", zap.Error(err))
			}
		}
		o.logger.Info("reminder scheduled", zap.String("slot", string(cmd.Slot)), zap.Time("due_at", cmd.DueAt))
		return cmd.Reply, true
	}

	return "", false
}

// answer asks the routed backend chain and applies the persona.
func (o *Orchestrator) answer(ctx context.Context, input string, resp *Response) string {
	title := o.title(ctx)

	var contexts []string
	if o.conversations != nil {
		past, err := o.conversations.Search(ctx, input, o.searchResults)
		if err != nil {
			o.logger.Warn("memory search failed", zap.Error(err))
		}
		for _, rec := range past {
			contexts = append(contexts, rec.Document)
		}
	}

	enhanced := o.prompts.BuildBasePrompt(prompt.BaseContext{
		Title:    title,
		Contexts: contexts,
		Question: input,
	})

	decision, result := o.router.Generate(ctx, input, enhanced)
	resp.Route = &decision
	resp.Backend = result.Backend
	if o.stats != nil {
		o.stats.RecordRoute(string(decision.Kind))
		if result.Failed() {
			o.stats.RecordError()
		}
	}
	if o.usage != nil && !result.Failed() {
		o.usage.Record(result.Backend, result.TokensUsed)
	}

	if o.persona == nil {
		return result.Text
	}
	return o.persona.Compose(ctx, input, result.Text, title)
}

func (o *Orchestrator) title(ctx context.Context) string {
	if o.prefs == nil {
		return o.defaultTitle
	}
	title, err := o.prefs.GetOr(ctx, memory.KeyUserTitle, o.defaultTitle)
	if err != nil {
		o.logger.Warn("read title failed", zap.Error(err))
	}
	return title
}

// persist records the exchange and mirrors it. The local append and each
// mirror are independent; failures are logged only.
func (o *Orchestrator) persist(ctx context.Context, input, reply string) string {
	rec, ok := o.record(ctx, input, reply)

	for _, sink := range o.sinks {
		if err := sink.Mirror(ctx, rec); err != nil {
			o.logger.Warn("mirror failed", zap.String("sink", sink.Name()), zap.Error(err))
			continue
		}
		o.logger.Debug("mirrored", zap.String("sink", sink.Name()), zap.String("id", rec.ID))
	}

	if !ok {
		return ""
	}
	return rec.ID
}

// record appends the exchange to the conversation store. When the store
// is missing or fails, an unsaved record with an empty ID is returned so
// the mirrors still see the exchange.
func (o *Orchestrator) record(ctx context.Context, input, reply string) (memory.Record, bool) {
	if o.conversations != nil {
		rec, err := o.conversations.Append(ctx, input, reply)
		if err == nil {
			return rec, true
		}
		o.logger.Error("save conversation failed", zap.Error(err))
	}

	return memory.Record{
		Input:     input,
		Response:  reply,
		Document:  memory.Document(input, reply),
		Type:      memory.DocumentType,
		Timestamp: o.now().Format(time.RFC3339),
	}, false
}

// Status reports the backends the router knows about.
type Status struct {
	Backends []model.BackendStatus `json:"backends"`
	Stats    *stats.Stats          `json:"stats,omitempty"`
	Usage    *usage.Report         `json:"usage,omitempty"`
}

// GetStats returns runtime statistics with the database file size.
func GetStats(collector *stats.Collector, dbPath string) *stats.Stats {
	// The file may be locked or missing; report zero size then.
	dbSize := int64(0)
	if dbPath != "" {
		if info, err := os.Stat(dbPath); err == nil {
			dbSize = info.Size()
		}
	}
	return collector.Collect(dbSize, dbPath)
}

package telegram

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/grind-ai/grind/internal/config"
	"github.com/grind-ai/grind/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type pollStep struct {
	updates []tgbotapi.Update
	err     error
}

type fakeClient struct {
	mu    sync.Mutex
	steps []pollStep
	calls []tgbotapi.UpdateConfig

	sendErr error
	sent    chan tgbotapi.MessageConfig
}

func newFakeClient(steps ...pollStep) *fakeClient {
	return &fakeClient{steps: steps, sent: make(chan tgbotapi.MessageConfig, 16)}
}

func (f *fakeClient) GetUpdates(c tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	n := len(f.calls)
	f.mu.Unlock()

	if n <= len(f.steps) {
		return f.steps[n-1].updates, f.steps[n-1].err
	}
	// An idle long poll.
	time.Sleep(5 * time.Millisecond)
	return nil, nil
}

func (f *fakeClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent <- msg
	}
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) call(i int) tgbotapi.UpdateConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

type echoResponder struct{}

func (echoResponder) Respond(ctx context.Context, input string) string {
	return "GRIND: " + input
}

func textUpdate(id int, chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: chatID},
			Text: text,
		},
	}
}

func testConfig() config.TelegramConfig {
	return config.TelegramConfig{
		Token:              "t",
		PollTimeoutSeconds: 60,
		QueueSize:          10,
		RetryDelaySeconds:  5,
		ErrorDelaySeconds:  10,
		ParseMode:          "Markdown",
	}
}

func receive(t *testing.T, ch <-chan tgbotapi.MessageConfig) tgbotapi.MessageConfig {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reply")
		return tgbotapi.MessageConfig{}
	}
}

func TestWorkerRepliesToTextMessages(t *testing.T) {
	client := newFakeClient(pollStep{updates: []tgbotapi.Update{
		textUpdate(7, 42, "hola"),
		{UpdateID: 8},         // no message
		textUpdate(9, 42, ""), // no text
		{UpdateID: 10, Message: &tgbotapi.Message{Text: "sin chat"}},
		textUpdate(11, 43, "¿qué tal?"),
	}})

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(client, echoResponder{}, testConfig(), nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	first := receive(t, client.sent)
	assert.Equal(t, int64(42), first.ChatID)
	assert.Equal(t, "GRIND: hola", first.Text)
	assert.Equal(t, "Markdown", first.ParseMode)

	second := receive(t, client.sent)
	assert.Equal(t, int64(43), second.ChatID)
	assert.Equal(t, "GRIND: ¿qué tal?", second.Text)

	require.Eventually(t, func() bool { return client.callCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, client.call(0).Offset)
	assert.Equal(t, 12, client.call(1).Offset)
	assert.Equal(t, 60, client.call(0).Timeout)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestDispatcherDropsFailedSends(t *testing.T) {
	client := newFakeClient()
	client.sendErr = fmt.Errorf("forbidden: bot was blocked by the user")
	d := NewDispatcher(client, echoResponder{}, "Markdown", nil)

	queue := make(chan Incoming, 2)
	queue <- Incoming{UpdateID: 1, ChatID: 1, Text: "uno"}
	queue <- Incoming{UpdateID: 2, ChatID: 2, Text: "dos"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, queue) }()

	assert.Equal(t, "GRIND: uno", receive(t, client.sent).Text)
	assert.Equal(t, "GRIND: dos", receive(t, client.sent).Text)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPollerRetryDelays(t *testing.T) {
	apiErr := &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}
	client := newFakeClient(
		pollStep{err: apiErr},
		pollStep{err: fmt.Errorf("unexpected end of JSON input")},
		pollStep{updates: []tgbotapi.Update{textUpdate(3, 1, "hola")}},
	)

	queue := make(chan Incoming, 1)
	p := NewPoller(client, testConfig(), queue, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var delays []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case in := <-queue:
		assert.Equal(t, "hola", in.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("message not queued")
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, delays)
}

func TestPollerHonoursRetryAfter(t *testing.T) {
	limited := &tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 3"}
	limited.RetryAfter = 3
	client := newFakeClient(
		pollStep{err: limited},
		pollStep{err: &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}},
		pollStep{updates: []tgbotapi.Update{textUpdate(4, 1, "hola")}},
	)

	queue := make(chan Incoming, 1)
	p := NewPoller(client, testConfig(), queue, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var delays []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
	}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case in := <-queue:
		assert.Equal(t, "hola", in.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("message not queued")
	}
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{3 * time.Second, 5 * time.Second}, delays)
}

func TestPollErrorMarksRateLimit(t *testing.T) {
	limited := &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}
	limited.RetryAfter = 7

	err := pollError(limited)
	assert.Equal(t, errors.CategoryRateLimit, errors.GetCategory(err))
	assert.True(t, errors.HasCode(err, errors.CodeTransportPoll))

	var apiErr *tgbotapi.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 429, apiErr.Code)

	other := &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}
	assert.Same(t, other, pollError(other))
}

func TestPollerBlocksOnFullQueue(t *testing.T) {
	client := newFakeClient(pollStep{updates: []tgbotapi.Update{
		textUpdate(1, 1, "uno"),
		textUpdate(2, 1, "dos"),
		textUpdate(3, 1, "tres"),
	}})

	queue := make(chan Incoming, 1)
	p := NewPoller(client, testConfig(), queue, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return len(queue) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, client.callCount(), "poller must wait for queue space before polling again")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWorkerStopsWhenIdle(t *testing.T) {
	client := newFakeClient()
	w := NewWorker(client, echoResponder{}, testConfig(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	assert.NoError(t, w.Run(ctx))
}

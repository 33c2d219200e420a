// Package usage tracks token usage per backend, split between the local
// model and the hosted APIs.
package usage

import (
	"sync"
	"time"
)

// Tracker accumulates usage for the current day and month. Periods roll
// over on the first request after midnight or the first of the month.
type Tracker struct {
	mu      sync.Mutex
	local   map[string]bool // backends running on this machine
	now     func() time.Time
	daily   Period
	monthly Period
}

// Period is the usage for one day or one month.
type Period struct {
	Label         string         `json:"label"` // 2006-01-02 or 2006-01
	LocalTokens   int            `json:"local_tokens"`
	HostedTokens  int            `json:"hosted_tokens"`
	Requests      int            `json:"requests"`
	LocalRequests int            `json:"local_requests"`
	ByBackend     map[string]int `json:"by_backend"` // requests per backend
}

// Report is a snapshot of both periods.
type Report struct {
	Daily     Period  `json:"daily"`
	Monthly   Period  `json:"monthly"`
	LocalRate float64 `json:"local_rate"` // percent of today's requests answered locally
}

// NewTracker creates a tracker. Requests answered by localBackends count
// as local.
func NewTracker(localBackends ...string) *Tracker {
	t := &Tracker{
		local: make(map[string]bool, len(localBackends)),
		now:   time.Now,
	}
	for _, name := range localBackends {
		t.local[name] = true
	}
	t.reset(t.now())
	return t
}

// SetClock replaces the wall clock and restarts both periods.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
	t.reset(now())
}

// Record records one answered request.
func (t *Tracker) Record(backend string, tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover(t.now())
	local := t.local[backend]
	t.daily.add(backend, local, tokens)
	t.monthly.add(backend, local, tokens)
}

// LocalRate returns the percentage of today's requests handled locally.
func (t *Tracker) LocalRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollover(t.now())
	return t.daily.localRate()
}

// Report returns a copy of the current periods.
func (t *Tracker) Report() *Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover(t.now())
	return &Report{
		Daily:     t.daily.clone(),
		Monthly:   t.monthly.clone(),
		LocalRate: t.daily.localRate(),
	}
}

func (t *Tracker) reset(now time.Time) {
	t.daily = newPeriod(now.Format("2006-01-02"))
	t.monthly = newPeriod(now.Format("2006-01"))
}

func (t *Tracker) rollover(now time.Time) {
	if day := now.Format("2006-01-02"); day != t.daily.Label {
		t.daily = newPeriod(day)
	}
	if month := now.Format("2006-01"); month != t.monthly.Label {
		t.monthly = newPeriod(month)
	}
}

func newPeriod(label string) Period {
	return Period{Label: label, ByBackend: make(map[string]int)}
}

func (p *Period) add(backend string, local bool, tokens int) {
	p.Requests++
	p.ByBackend[backend]++
	if local {
		p.LocalRequests++
		p.LocalTokens += tokens
		return
	}
	p.HostedTokens += tokens
}

func (p Period) localRate() float64 {
	if p.Requests == 0 {
		return 0
	}
	return float64(p.LocalRequests) / float64(p.Requests) * 100
}

func (p Period) clone() Period {
	byBackend := make(map[string]int, len(p.ByBackend))
	for k, v := range p.ByBackend {
		byBackend[k] = v
	}
	p.ByBackend = byBackend
	return p
}

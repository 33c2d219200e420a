// Package mirror copies finished exchanges to external logs. Mirrors are
// best-effort: the orchestrator logs a failed mirror and moves on.
package mirror

import (
	"context"

	"github.com/grind-ai/grind/internal/memory"
)

// Sink receives every persisted conversation record.
type Sink interface {
	Name() string
	Mirror(ctx context.Context, rec memory.Record) error
}

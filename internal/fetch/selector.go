package fetch

import (
	"github.com/ternarybob/reperio/internal/models"
)

// Selector decides which strategy to try next for a URL given its attempt
// history. Strategies only escalate within a task, never de-escalate, and a
// hard attempt cap guarantees termination.
type Selector struct {
	maxAttempts int
}

// NewSelector creates a selector with the given per-task attempt cap
func NewSelector(maxAttempts int) *Selector {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Selector{maxAttempts: maxAttempts}
}

// MaxAttempts returns the per-task attempt cap
func (s *Selector) MaxAttempts() int {
	return s.maxAttempts
}

// Next returns the strategy for the next attempt, or ok=false when the task
// should stop. Escalation policy: start at plain; a block signature escalates
// one level; shell content escalates straight to rendered; transient errors
// escalate one level since a stronger fingerprint or full rendering often
// clears them.
func (s *Selector) Next(history []models.AttemptRecord) (models.FetchStrategy, bool) {
	if len(history) >= s.maxAttempts {
		return "", false
	}
	if len(history) == 0 {
		return models.StrategyPlain, true
	}

	last := history[len(history)-1]
	switch Outcome(last.Outcome) {
	case OutcomeShell:
		if last.Strategy == models.StrategyRendered {
			// Rendered output still looks like a shell; nothing stronger exists.
			return "", false
		}
		return models.StrategyRendered, true
	case OutcomeBlocked, OutcomeError:
		switch last.Strategy {
		case models.StrategyPlain:
			return models.StrategyBypass, true
		case models.StrategyBypass:
			return models.StrategyRendered, true
		default:
			return "", false
		}
	default:
		// A successful attempt terminates the task; the worker should not
		// ask for another strategy.
		return "", false
	}
}

package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/reperio/internal/models"
)

func attempt(strategy models.FetchStrategy, outcome Outcome) models.AttemptRecord {
	return models.AttemptRecord{Strategy: strategy, Outcome: string(outcome)}
}

func TestSelectorEscalation(t *testing.T) {
	s := NewSelector(3)

	tests := []struct {
		name    string
		history []models.AttemptRecord
		want    models.FetchStrategy
		wantOK  bool
	}{
		{
			name:    "first attempt is plain",
			history: nil,
			want:    models.StrategyPlain,
			wantOK:  true,
		},
		{
			name:    "plain blocked escalates to bypass",
			history: []models.AttemptRecord{attempt(models.StrategyPlain, OutcomeBlocked)},
			want:    models.StrategyBypass,
			wantOK:  true,
		},
		{
			name: "bypass blocked escalates to rendered",
			history: []models.AttemptRecord{
				attempt(models.StrategyPlain, OutcomeBlocked),
				attempt(models.StrategyBypass, OutcomeBlocked),
			},
			want:   models.StrategyRendered,
			wantOK: true,
		},
		{
			name:    "plain shell escalates straight to rendered",
			history: []models.AttemptRecord{attempt(models.StrategyPlain, OutcomeShell)},
			want:    models.StrategyRendered,
			wantOK:  true,
		},
		{
			name:    "plain error escalates to bypass",
			history: []models.AttemptRecord{attempt(models.StrategyPlain, OutcomeError)},
			want:    models.StrategyBypass,
			wantOK:  true,
		},
		{
			name:    "success terminates",
			history: []models.AttemptRecord{attempt(models.StrategyPlain, OutcomeSuccess)},
			wantOK:  false,
		},
		{
			name: "rendered shell has nothing stronger",
			history: []models.AttemptRecord{
				attempt(models.StrategyPlain, OutcomeShell),
				attempt(models.StrategyRendered, OutcomeShell),
			},
			wantOK: false,
		},
		{
			name: "rendered failure terminates",
			history: []models.AttemptRecord{
				attempt(models.StrategyPlain, OutcomeBlocked),
				attempt(models.StrategyBypass, OutcomeBlocked),
				attempt(models.StrategyRendered, OutcomeError),
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Next(tt.history)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSelectorAttemptCap(t *testing.T) {
	s := NewSelector(3)

	// Three attempts consumed; a fourth is never offered regardless of history
	history := []models.AttemptRecord{
		attempt(models.StrategyPlain, OutcomeBlocked),
		attempt(models.StrategyBypass, OutcomeError),
		attempt(models.StrategyRendered, OutcomeError),
	}
	_, ok := s.Next(history)
	assert.False(t, ok)

	// Cap applies even if history somehow holds repeats
	history = []models.AttemptRecord{
		attempt(models.StrategyPlain, OutcomeError),
		attempt(models.StrategyBypass, OutcomeError),
		attempt(models.StrategyBypass, OutcomeError),
	}
	_, ok = s.Next(history)
	assert.False(t, ok)
}

func TestSelectorNeverDeEscalates(t *testing.T) {
	s := NewSelector(5)

	// After rendering, no path leads back to plain or bypass
	history := []models.AttemptRecord{
		attempt(models.StrategyPlain, OutcomeShell),
		attempt(models.StrategyRendered, OutcomeBlocked),
	}
	_, ok := s.Next(history)
	assert.False(t, ok)
}

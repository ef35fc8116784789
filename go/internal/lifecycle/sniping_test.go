package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mcdev12/gavel/go/internal/config"
)

func TestExtensionEligible(t *testing.T) {
	tuning := config.DefaultTuning()

	tests := []struct {
		name      string
		roundIdx  int
		place     int
		remaining time.Duration
		want      bool
	}{
		{name: "top-1 in final minute of round 0", roundIdx: 0, place: 1, remaining: 5 * time.Second, want: true},
		{name: "top-3 exactly at window edge", roundIdx: 0, place: 3, remaining: 60 * time.Second, want: true},
		{name: "outside window", roundIdx: 0, place: 1, remaining: 61 * time.Second, want: false},
		{name: "round already over", roundIdx: 0, place: 1, remaining: 0, want: false},
		{name: "place 4", roundIdx: 0, place: 4, remaining: 5 * time.Second, want: false},
		{name: "round 1 not eligible by default", roundIdx: 1, place: 1, remaining: 5 * time.Second, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtensionEligible(tuning, tt.roundIdx, tt.place, tt.remaining))
		})
	}
}

func TestExtensionEligibleConfiguredRounds(t *testing.T) {
	tuning := config.DefaultTuning()
	tuning.AntiSnipingRounds = []int{0, 1}

	assert.True(t, ExtensionEligible(tuning, 1, 2, 10*time.Second))
	assert.False(t, ExtensionEligible(tuning, 2, 2, 10*time.Second))
}

// Scenario from the product rules: a 30 s round 0 where two late top-3 bids
// stack extensions to 55 s and then 84 s.
func TestExtensionStacking(t *testing.T) {
	tuning := config.DefaultTuning()
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	endedAt := start.Add(30 * time.Second)

	// First qualifying bid at t=25s: 5 s remain.
	now := start.Add(25 * time.Second)
	assert.True(t, ExtensionEligible(tuning, 0, 1, endedAt.Sub(now)))
	extendedUntil := now.Add(tuning.AntiSnipingExtend)
	assert.Equal(t, start.Add(55*time.Second), extendedUntil)

	// Second qualifying bid at t=54s against the extended deadline.
	now = start.Add(54 * time.Second)
	assert.True(t, ExtensionEligible(tuning, 0, 1, extendedUntil.Sub(now)))
	extendedUntil = now.Add(tuning.AntiSnipingExtend)
	assert.Equal(t, start.Add(84*time.Second), extendedUntil)
}

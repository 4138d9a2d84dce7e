package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBandFor(t *testing.T) {
	tests := []struct {
		priority int
		want     Band
	}{
		{10, BandUrgent},
		{8, BandUrgent},
		{7, BandHigh},
		{5, BandHigh},
		{4, BandNormal},
		{0, BandNormal},
		{-3, BandNormal},
	}
	for _, tt := range tests {
		if got := BandFor(tt.priority); got != tt.want {
			t.Errorf("BandFor(%d) = %s, want %s", tt.priority, got, tt.want)
		}
	}
}

func TestSortForQueueFIFOWithinPriority(t *testing.T) {
	base := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	items := []*Conversation{
		{ID: "c1", Sequence: 1, Priority: 5, StartedAt: base},
		{ID: "c2", Sequence: 2, Priority: 5, StartedAt: base.Add(time.Second)},
		{ID: "c3", Sequence: 3, Priority: 8, StartedAt: base.Add(2 * time.Second)},
		{ID: "c4", Sequence: 4, Priority: 5, StartedAt: base.Add(3 * time.Second)},
	}

	SortForQueue(items)

	got := make([]string, 0, len(items))
	for _, c := range items {
		got = append(got, c.ID)
	}
	assert.Equal(t, []string{"c3", "c1", "c2", "c4"}, got)
}

func TestQueueLessTieBreaksOnSequence(t *testing.T) {
	at := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	a := &Conversation{Sequence: 7, Priority: 3, StartedAt: at}
	b := &Conversation{Sequence: 9, Priority: 3, StartedAt: at}

	assert.True(t, QueueLess(a, b))
	assert.False(t, QueueLess(b, a))
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusWaiting, StatusActive, true},
		{StatusWaiting, StatusFinished, false},
		{StatusActive, StatusPaused, true},
		{StatusPaused, StatusActive, true},
		{StatusActive, StatusFinished, true},
		{StatusPaused, StatusFinished, true},
		{StatusActive, StatusWaiting, false},
		{StatusPaused, StatusWaiting, false},
		{StatusFinished, StatusActive, false},
		{StatusFinished, StatusFinished, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestSourcesOfDerivesGuards(t *testing.T) {
	tests := []struct {
		target Status
		want   []Status
	}{
		{StatusActive, []Status{StatusWaiting, StatusActive, StatusPaused}},
		{StatusPaused, []Status{StatusActive}},
		{StatusFinished, []Status{StatusActive, StatusPaused}},
		{StatusWaiting, nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SourcesOf(tt.target), "sources of %s", tt.target)
	}
	assert.Equal(t, []Status{StatusActive, StatusPaused}, HeldStatuses())
}

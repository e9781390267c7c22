package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingPuller struct {
	calls atomic.Int32
}

func (p *countingPuller) PullAll(context.Context) {
	p.calls.Add(1)
}

func TestNewRejectsShortInterval(t *testing.T) {
	if _, err := New(&countingPuller{}, 30*time.Second, "UTC", 0); err == nil {
		t.Fatalf("expected sub-minute interval to be rejected")
	}
}

func TestNewRejectsUnknownTimezone(t *testing.T) {
	if _, err := New(&countingPuller{}, time.Minute, "Mars/Olympus", 0); err == nil {
		t.Fatalf("expected unknown timezone to be rejected")
	}
}

func TestStartRunsImmediately(t *testing.T) {
	puller := &countingPuller{}
	s, err := New(puller, 5*time.Minute, "America/Santiago", time.Second)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for puller.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if puller.calls.Load() == 0 {
		t.Fatalf("expected first pull right after start")
	}
	if next := s.NextRun(); !next.After(time.Now()) {
		t.Fatalf("expected next run in the future, got %s", next)
	}
}

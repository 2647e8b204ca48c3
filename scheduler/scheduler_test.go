package scheduler

import (
	"testing"
	"time"
)

func TestNewValidations(t *testing.T) {
	if _, err := New(time.Hour, time.Second, nil); err == nil {
		t.Fatalf("expected error for nil job")
	}
	if _, err := New(0, time.Second, func() {}); err == nil {
		t.Fatalf("expected error for zero interval")
	}
	if _, err := New(time.Hour, -time.Second, func() {}); err == nil {
		t.Fatalf("expected error for negative delay")
	}
}

func TestInitialDelayTriggersJob(t *testing.T) {
	fired := make(chan struct{}, 1)
	s, err := New(time.Hour, 10*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	defer s.Stop()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("initial run did not fire")
	}
}

func TestStopCancelsPendingInitialRun(t *testing.T) {
	fired := make(chan struct{}, 1)
	s, err := New(time.Hour, time.Hour, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	s.Stop()

	select {
	case <-fired:
		t.Fatalf("job fired after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

package sweep

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lucabenedettini/pypi-monitor-aws-bot/notify"
	"github.com/lucabenedettini/pypi-monitor-aws-bot/pypi"
	"github.com/lucabenedettini/pypi-monitor-aws-bot/storage"

	_ "modernc.org/sqlite"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func (r *recordingSender) SendHTML(ctx context.Context, chatID int64, htmlText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = map[int64][]string{}
	}
	r.sent[chatID] = append(r.sent[chatID], htmlText)
	return nil
}

type registryState struct {
	mu          sync.Mutex
	version     string
	unreachable bool
	lookups     int
}

func (s *registryState) lookupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

func newRegistry(state *registryState) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		defer state.mu.Unlock()
		if r.URL.Path != "/pypi/example-lib/json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		state.lookups++
		if state.unreachable {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"info":{"version":"` + state.version + `"}}`))
	}))
}

// Walks the full lifecycle against real storage and a fake registry:
// two subscribers track the same package, a release triggers one
// notification each and advances both rows, an outage mutates nothing,
// and unfollowing empties the sweep's work set.
func TestSweepLifecycle(t *testing.T) {
	ctx := context.Background()

	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)
	store := storage.New(db)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	state := &registryState{version: "1.0.0"}
	registry := newRegistry(state)
	defer registry.Close()
	resolver := pypi.NewClientWithBaseURL(registry.Client(), registry.URL)

	sender := &recordingSender{}
	runner := &Runner{
		Storage:  store,
		Resolver: resolver,
		Notifier: &notify.Notifier{Storage: store, Sender: sender},
	}

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s1, _ := store.GetOrCreateUser(ctx, 100, "S1", "s1")
	s2, _ := store.GetOrCreateUser(ctx, 200, "S2", "s2")
	link := "https://pypi.org/project/example-lib"
	if err := store.CreateTracking(ctx, s1.ID, "example-lib", link, "1.0.0", now); err != nil {
		t.Fatalf("CreateTracking s1: %v", err)
	}
	if err := store.CreateTracking(ctx, s2.ID, "example-lib", link, "1.0.0", now); err != nil {
		t.Fatalf("CreateTracking s2: %v", err)
	}

	// No change yet: one lookup, zero messages.
	if err := runner.Run(ctx); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if got := state.lookupCount(); got != 1 {
		t.Fatalf("expected 1 registry lookup for 2 subscribers, got %d", got)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("unexpected messages: %v", sender.sent)
	}

	// New release: exactly one message per subscriber, both rows advanced.
	state.mu.Lock()
	state.version = "1.1.0"
	state.mu.Unlock()
	if err := runner.Run(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	for _, chatID := range []int64{100, 200} {
		msgs := sender.sent[chatID]
		if len(msgs) != 1 || !strings.Contains(msgs[0], "1.1.0") {
			t.Fatalf("subscriber %d messages: %v", chatID, msgs)
		}
	}
	version, ok, err := store.LastKnownVersion(ctx, "example-lib")
	if err != nil || !ok || version != "1.1.0" {
		t.Fatalf("expected advanced version 1.1.0, got %q ok=%v err=%v", version, ok, err)
	}

	// Registry outage: nothing sent, nothing mutated.
	state.mu.Lock()
	state.unreachable = true
	state.version = "1.2.0"
	state.mu.Unlock()
	if err := runner.Run(ctx); err != nil {
		t.Fatalf("outage sweep: %v", err)
	}
	for chatID, msgs := range sender.sent {
		if len(msgs) != 1 {
			t.Fatalf("subscriber %d received messages during outage: %v", chatID, msgs)
		}
	}
	version, _, _ = store.LastKnownVersion(ctx, "example-lib")
	if version != "1.1.0" {
		t.Fatalf("version mutated during outage: %s", version)
	}

	// Both unfollow: the slug disappears from the sweep's work set.
	if err := store.DeleteTracking(ctx, s1.ID, "example-lib"); err != nil {
		t.Fatalf("DeleteTracking s1: %v", err)
	}
	if err := store.DeleteTracking(ctx, s2.ID, "example-lib"); err != nil {
		t.Fatalf("DeleteTracking s2: %v", err)
	}
	slugs, err := store.DistinctSlugs(ctx)
	if err != nil {
		t.Fatalf("DistinctSlugs: %v", err)
	}
	if len(slugs) != 0 {
		t.Fatalf("expected empty work set, got %v", slugs)
	}

	lookupsBefore := state.lookupCount()
	if err := runner.Run(ctx); err != nil {
		t.Fatalf("final sweep: %v", err)
	}
	if state.lookupCount() != lookupsBefore {
		t.Fatalf("sweep resolved an untracked slug")
	}
}

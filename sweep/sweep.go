package sweep

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lucabenedettini/pypi-monitor-aws-bot/pypi"
)

// Storage provides persistence for sweep operations.
type Storage interface {
	DistinctSlugs(ctx context.Context) ([]string, error)
	LastKnownVersion(ctx context.Context, slug string) (string, bool, error)
	AdvanceVersion(ctx context.Context, slug, newVersion string) error
}

// Resolver fetches the current published version of a package.
type Resolver interface {
	Resolve(ctx context.Context, slug string) pypi.Result
}

// Notifier fans a version change out to subscribers.
type Notifier interface {
	Notify(ctx context.Context, slug, newVersion string) error
}

// Runner executes one update-detection cycle over all tracked packages.
// Run is guarded against overlap: a trigger arriving while a cycle is
// still in flight returns immediately.
type Runner struct {
	Storage  Storage
	Resolver Resolver
	Notifier Notifier
	Logger   *slog.Logger

	mu sync.Mutex
}

// Run resolves every distinct tracked slug once, compares against the
// persisted version and, on change, notifies subscribers before
// advancing storage. Per-slug failures skip only that slug.
func (r *Runner) Run(ctx context.Context) error {
	if !r.mu.TryLock() {
		r.logger().Info("sweep_already_running")
		return nil
	}
	defer r.mu.Unlock()

	logger := r.logger()

	slugs, err := r.Storage.DistinctSlugs(ctx)
	if err != nil {
		return err
	}
	logger.Info("sweep_start", slog.Int("packages", len(slugs)))

	changed := 0
	for _, slug := range slugs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.check(ctx, logger, slug) {
			changed++
		}
	}

	logger.Info("sweep_complete", slog.Int("packages", len(slugs)), slog.Int("updated", changed))
	return nil
}

// check processes a single slug and reports whether a version change
// was detected and applied.
func (r *Runner) check(ctx context.Context, logger *slog.Logger, slug string) bool {
	result := r.Resolver.Resolve(ctx, slug)
	switch result.Status {
	case pypi.StatusUnreachable:
		logger.Warn("sweep_resolve_unreachable", slog.String("slug", slug), slog.String("error", errText(result.Err)))
		return false
	case pypi.StatusNotFound:
		logger.Warn("sweep_package_not_found", slog.String("slug", slug))
		return false
	}

	stored, ok, err := r.Storage.LastKnownVersion(ctx, slug)
	if err != nil {
		logger.Warn("sweep_read_version_failed", slog.String("slug", slug), slog.String("error", err.Error()))
		return false
	}
	if !ok {
		// All trackings for the slug were removed mid-cycle.
		return false
	}
	if stored == result.Version {
		return false
	}

	if err := r.Notifier.Notify(ctx, slug, result.Version); err != nil {
		logger.Warn("sweep_notify_failed", slog.String("slug", slug), slog.String("error", err.Error()))
		return false
	}
	if err := r.Storage.AdvanceVersion(ctx, slug, result.Version); err != nil {
		logger.Warn("sweep_advance_failed", slog.String("slug", slug), slog.String("error", err.Error()))
		return false
	}

	logger.Info("sweep_version_changed",
		slog.String("slug", slug),
		slog.String("from", stored),
		slog.String("to", result.Version))
	return true
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

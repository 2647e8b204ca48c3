package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lucabenedettini/pypi-monitor-aws-bot/model"
)

// ErrDuplicateTracking is returned when a (user, slug) pair is already tracked.
var ErrDuplicateTracking = errors.New("tracking already exists")

// Storage provides persistence operations.
type Storage struct {
	db *sql.DB
}

// New returns a new Storage instance.
func New(db *sql.DB) *Storage {
	return &Storage{db: db}
}

// migrations is the forward-only schema history. Entries are applied in
// order inside a transaction and recorded in schema_migrations, so a
// restart never re-runs an applied step.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		telegram_id INTEGER NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT ''
	);`,
	`CREATE TABLE IF NOT EXISTS packages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		link TEXT NOT NULL,
		last_check_version TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE(user_id, slug)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_packages_slug ON packages(slug);`,
	`CREATE INDEX IF NOT EXISTS idx_packages_user ON packages(user_id);`,
}

// Migrate applies pending schema migrations.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL
	);`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, i+1, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}
	return nil
}

// GetOrCreateUser returns the user for a Telegram ID, creating it on
// first contact. Stored name fields are never overwritten.
func (s *Storage) GetOrCreateUser(ctx context.Context, telegramID int64, fullName, username string) (model.User, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, full_name, username) VALUES (?, ?, ?)
		ON CONFLICT(telegram_id) DO NOTHING
	`, telegramID, fullName, username); err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}

	var user model.User
	row := s.db.QueryRowContext(ctx, `SELECT id, telegram_id, full_name, username FROM users WHERE telegram_id = ?`, telegramID)
	if err := row.Scan(&user.ID, &user.TelegramID, &user.FullName, &user.Username); err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// CreateTracking inserts a tracking row. It returns ErrDuplicateTracking
// when the user already tracks the slug.
func (s *Storage) CreateTracking(ctx context.Context, userID int64, slug, link, initialVersion string, createdAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO packages (slug, user_id, link, last_check_version, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, slug) DO NOTHING
	`, slug, userID, link, initialVersion, createdAt)
	if err != nil {
		return fmt.Errorf("insert tracking: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDuplicateTracking
	}
	return nil
}

// ListUserSlugs returns the distinct slugs a user tracks, sorted.
func (s *Storage) ListUserSlugs(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT slug FROM packages WHERE user_id = ? ORDER BY slug`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user slugs: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan user slug: %w", err)
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows user slugs: %w", err)
	}
	return slugs, nil
}

// DistinctSlugs returns every tracked slug exactly once across all users.
func (s *Storage) DistinctSlugs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT slug FROM packages ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list distinct slugs: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan distinct slug: %w", err)
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows distinct slugs: %w", err)
	}
	return slugs, nil
}

// LastKnownVersion returns the persisted version for a slug. All rows
// for a slug carry the same value, so any row answers.
func (s *Storage) LastKnownVersion(ctx context.Context, slug string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT last_check_version FROM packages WHERE slug = ? LIMIT 1`, slug)
	var version string
	if err := row.Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get last version: %w", err)
	}
	return version, true, nil
}

// Subscribers returns the deduplicated users tracking a slug.
func (s *Storage) Subscribers(ctx context.Context, slug string) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT u.id, u.telegram_id, u.full_name, u.username
		FROM users u
		JOIN packages p ON p.user_id = u.id
		WHERE p.slug = ?
		ORDER BY u.id
	`, slug)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.TelegramID, &user.FullName, &user.Username); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows subscribers: %w", err)
	}
	return users, nil
}

// AdvanceVersion sets the persisted version on every tracking row for a
// slug in one statement, keeping subscribers consistent with each other.
func (s *Storage) AdvanceVersion(ctx context.Context, slug, newVersion string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE packages SET last_check_version = ? WHERE slug = ?`, newVersion, slug); err != nil {
		return fmt.Errorf("advance version: %w", err)
	}
	return nil
}

// DeleteTracking removes a user's tracking for a slug. Absent rows are a no-op.
func (s *Storage) DeleteTracking(ctx context.Context, userID int64, slug string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM packages WHERE user_id = ? AND slug = ?`, userID, slug); err != nil {
		return fmt.Errorf("delete tracking: %w", err)
	}
	return nil
}

package model

import "time"

// User is a Telegram user known to the bot. Created lazily on first
// interaction and never deleted.
type User struct {
	ID         int64
	TelegramID int64
	FullName   string
	Username   string
}

// Tracking links a user to a PyPI package they follow. LastKnownVersion
// is the version persisted at creation or by the last sweep; all rows
// for the same slug are advanced together.
type Tracking struct {
	ID               int64
	Slug             string
	UserID           int64
	Link             string
	LastKnownVersion string
	CreatedAt        time.Time
}

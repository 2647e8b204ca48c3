package bot

import (
	"sync"
	"time"
)

// conversations tracks which chats are waiting for a package link.
// An entry past its deadline counts as expired and is dropped on access.
type conversations struct {
	mu       sync.Mutex
	awaiting map[int64]time.Time
	timeout  time.Duration
	now      func() time.Time
}

func newConversations(timeout time.Duration, now func() time.Time) *conversations {
	if now == nil {
		now = time.Now
	}
	return &conversations{
		awaiting: make(map[int64]time.Time),
		timeout:  timeout,
		now:      now,
	}
}

// begin puts a chat into the awaiting-link state, resetting any
// previous deadline.
func (c *conversations) begin(chatID int64) {
	c.mu.Lock()
	c.awaiting[chatID] = c.now().Add(c.timeout)
	c.mu.Unlock()
}

// awaitingLink reports whether a chat is still waiting for a link.
func (c *conversations) awaitingLink(chatID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline, ok := c.awaiting[chatID]
	if !ok {
		return false
	}
	if c.now().After(deadline) {
		delete(c.awaiting, chatID)
		return false
	}
	return true
}

// end returns a chat to the idle state.
func (c *conversations) end(chatID int64) {
	c.mu.Lock()
	delete(c.awaiting, chatID)
	c.mu.Unlock()
}

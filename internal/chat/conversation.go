package chat

import (
	"sync"
	"time"
)

// Conversation is an append-only message log.
type Conversation struct {
	mu   sync.RWMutex
	msgs []Message
}

// Append stores m and returns it with Index and CreatedAt set.
func (c *Conversation) Append(m Message) Message {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m.Index = len(c.msgs)
	c.msgs = append(c.msgs, m)
	return m
}

// Messages returns a copy of the log.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func (c *Conversation) Get(i int) (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i < 0 || i >= len(c.msgs) {
		return Message{}, false
	}
	return c.msgs[i], true
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.msgs)
}

// Recent returns up to n of the latest non-error messages, oldest first.
func (c *Conversation) Recent(n int) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, 0, n)
	for i := len(c.msgs) - 1; i >= 0 && len(out) < n; i-- {
		if !c.msgs[i].Error {
			out = append(out, c.msgs[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Clear starts a fresh log. Slices returned earlier are unaffected.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = nil
}

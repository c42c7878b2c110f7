package stats

import (
	"sync"
	"time"
)

// Activity is one observed group message.
type Activity struct {
	UserID    int64
	Name      string
	MessageID int
	At        time.Time
}

// Buffer collects activity between scans.
type Buffer struct {
	mu    sync.Mutex
	items []Activity
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Record(a Activity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, a)
}

// Drain returns everything recorded so far and empties the buffer.
func (b *Buffer) Drain() []Activity {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := b.items
	b.items = nil
	return items
}

// Requeue puts items that could not be merged back in front of anything
// recorded since.
func (b *Buffer) Requeue(items []Activity) {
	if len(items) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(append(make([]Activity, 0, len(items)+len(b.items)), items...), b.items...)
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

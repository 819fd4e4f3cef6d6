package feed

import "sync"

// DefaultMaxItems is the default buffer cap
const DefaultMaxItems = 100

// Buffer holds the bounded, newest-first list of activity items together
// with their read state and the pause gate. All methods are safe for
// concurrent use.
type Buffer struct {
	mu       sync.RWMutex
	items    []ActivityItem
	maxItems int
	paused   bool
}

// NewBuffer creates a buffer capped at maxItems, optionally pre-seeded.
// A non-positive maxItems falls back to DefaultMaxItems. Seed items beyond
// the cap are evicted from the tail, the same as pushed items.
func NewBuffer(maxItems int, initial []ActivityItem) *Buffer {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	b := &Buffer{maxItems: maxItems}
	b.items = append(b.items, initial...)
	if len(b.items) > b.maxItems {
		b.items = b.items[:b.maxItems]
	}
	return b
}

// Push accepts an item into the buffer. It returns false if the item was
// dropped by the pause gate; paused items are lost, not queued. The newest
// item is always at the head and overflow is evicted from the tail.
func (b *Buffer) Push(item ActivityItem) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.paused {
		return false
	}

	b.items = append([]ActivityItem{item}, b.items...)
	if len(b.items) > b.maxItems {
		b.items = b.items[:b.maxItems]
	}
	return true
}

// Items returns a snapshot of the full buffer, newest-first
func (b *Buffer) Items() []ActivityItem {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]ActivityItem, len(b.items))
	copy(out, b.items)
	return out
}

// Filtered returns the subset of the buffer matched by the filter.
// Ordering is inherited from the buffer; filtering never reorders.
func (b *Buffer) Filtered(f Filter) []ActivityItem {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]ActivityItem, 0, len(b.items))
	for i := range b.items {
		if f.Matches(b.items[i]) {
			out = append(out, b.items[i])
		}
	}
	return out
}

// MarkRead sets the read flag on the matching item. It is a no-op when the
// id is absent and idempotent when the item is already read.
func (b *Buffer) MarkRead(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.items {
		if b.items[i].ID == id {
			b.items[i].Read = true
			return true
		}
	}
	return false
}

// MarkAllRead sets the read flag on every buffered item, not just the
// currently filtered view
func (b *Buffer) MarkAllRead() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.items {
		b.items[i].Read = true
	}
}

// ClearAll empties the buffer immediately
func (b *Buffer) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = nil
}

// UnreadCount returns the number of unread items in the full buffer
func (b *Buffer) UnreadCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for i := range b.items {
		if !b.items[i].Read {
			count++
		}
	}
	return count
}

// Len returns the number of buffered items
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

// SetPaused toggles the ingestion gate. While paused, pushed items are
// dropped before buffering and before any side effects fire.
func (b *Buffer) SetPaused(paused bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paused = paused
}

// Paused reports whether the ingestion gate is closed
func (b *Buffer) Paused() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.paused
}

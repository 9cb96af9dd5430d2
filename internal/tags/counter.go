package tags

import (
	"context"
	"sort"
	"sync"

	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
)

// Counter tracks how often each campaign tag has been seen.
type Counter interface {
	Increment(ctx context.Context, tags ...string) error
	// Top returns up to limit tags, most frequent first.
	Top(ctx context.Context, limit int) ([]domain.TagCount, error)
	Reset(ctx context.Context) error
}

// MemoryCounter is a process-local Counter. Counts are lost on restart.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	order  []string
}

// NewMemoryCounter returns an empty MemoryCounter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int64)}
}

// Increment adds one to each tag.
func (c *MemoryCounter) Increment(_ context.Context, tags ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tags {
		if _, ok := c.counts[t]; !ok {
			c.order = append(c.order, t)
		}
		c.counts[t]++
	}
	return nil
}

// Top returns the most frequent tags; ties keep first-seen order.
func (c *MemoryCounter) Top(_ context.Context, limit int) ([]domain.TagCount, error) {
	c.mu.Lock()
	out := make([]domain.TagCount, len(c.order))
	for i, t := range c.order {
		out[i] = domain.TagCount{Tag: t, Count: c.counts[t]}
	}
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Reset clears every count.
func (c *MemoryCounter) Reset(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = make(map[string]int64)
	c.order = nil
	return nil
}

package service

import (
	"context"
	"sync"

	"github.com/dreamspy/mnemo/internal/store"

	"github.com/sirupsen/logrus"
)

// Badge derives the visible pending count from the queue store. It
// holds no state of its own beyond the last computed count; every item
// in the queue is unresolved, so the count is simply the queue length.
type Badge struct {
	store  *store.Store
	logger *logrus.Logger

	mu        sync.RWMutex
	count     int
	listeners []func(int)
}

func NewBadge(st *store.Store, logger *logrus.Logger) *Badge {
	return &Badge{
		store:  st,
		logger: logger,
	}
}

// Subscribe registers a listener invoked with the new count after every
// refresh.
func (b *Badge) Subscribe(fn func(int)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Refresh recomputes the count from the store and notifies listeners.
func (b *Badge) Refresh(ctx context.Context) int {
	n, err := b.store.Count(ctx)
	if err != nil {
		b.logger.WithError(err).Warn("Failed to count queue for badge")
		b.mu.RLock()
		defer b.mu.RUnlock()
		return b.count
	}

	b.mu.Lock()
	b.count = n
	listeners := make([]func(int), len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(n)
	}
	return n
}

// Count returns the last computed pending count.
func (b *Badge) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

package queue

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/denizaktas/beautyharvest/internal/models"
)

var ErrQueueClosed = errors.New("queue is closed")

// Queue feeds discovered product URLs to the extraction workers. Higher
// confidence URLs come out first so strong discovery phases are drained
// before emergency-grade candidates.
type Queue interface {
	Push(u models.DiscoveredURL) error
	Pop(ctx context.Context) (models.DiscoveredURL, error)
	Size() int
	Close() error
}

type InMemoryQueue struct {
	mu     sync.Mutex
	urls   []models.DiscoveredURL
	closed bool
	wake   chan struct{}
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		urls: make([]models.DiscoveredURL, 0),
		wake: make(chan struct{}),
	}
}

// broadcast wakes every blocked Pop. Callers must hold mu.
func (q *InMemoryQueue) broadcast() {
	close(q.wake)
	q.wake = make(chan struct{})
}

func (q *InMemoryQueue) Push(u models.DiscoveredURL) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.urls = append(q.urls, u)
	sort.SliceStable(q.urls, func(i, j int) bool {
		return q.urls[i].Confidence > q.urls[j].Confidence
	})
	q.broadcast()

	return nil
}

// Pop blocks until a URL is available, the queue is closed, or ctx ends.
// After Close, remaining URLs still drain before ErrQueueClosed is returned.
func (q *InMemoryQueue) Pop(ctx context.Context) (models.DiscoveredURL, error) {
	q.mu.Lock()
	for {
		if len(q.urls) > 0 {
			u := q.urls[0]
			q.urls = q.urls[1:]
			q.mu.Unlock()
			return u, nil
		}
		if q.closed {
			q.mu.Unlock()
			return models.DiscoveredURL{}, ErrQueueClosed
		}

		// Wait outside the lock so Push and Close can proceed. The captured
		// channel is closed on the next broadcast, after which the state is
		// re-checked under the lock.
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.DiscoveredURL{}, ctx.Err()
		case <-wake:
		}
		q.mu.Lock()
	}
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.urls)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.broadcast()

	return nil
}

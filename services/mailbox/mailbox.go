// Package mailbox is an unbounded multi-producer single-consumer FIFO.
// Senders never block; the consumer can poll or wait.
package mailbox

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("mailbox closed")

type Status uint8

const (
	Received Status = iota
	Empty
	Closed
)

type Mailbox[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	notify chan struct{}
}

func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{notify: make(chan struct{}, 1)}
}

// Send queues v. It returns false once the mailbox is closed.
func (m *Mailbox[T]) Send(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, v)
	m.mu.Unlock()

	m.wake()
	return true
}

// Close stops further sends. Items already queued are still delivered.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wake()
}

func (m *Mailbox[T]) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// TryRecv never blocks. Closed is only reported once the queue is drained.
func (m *Mailbox[T]) TryRecv() (T, Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if len(m.items) == 0 {
		if m.closed {
			return zero, Closed
		}
		return zero, Empty
	}

	v := m.items[0]
	m.items[0] = zero
	m.items = m.items[1:]
	if len(m.items) == 0 {
		m.items = nil
	}
	return v, Received
}

// Recv waits for the next item, the mailbox closing, or ctx.
func (m *Mailbox[T]) Recv(ctx context.Context) (T, error) {
	for {
		v, status := m.TryRecv()
		switch status {
		case Received:
			return v, nil
		case Closed:
			return v, ErrClosed
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-m.notify:
		}
	}
}

// Ready fires after a send or close. A single consumer may select on it
// instead of sleeping between polls.
func (m *Mailbox[T]) Ready() <-chan struct{} {
	return m.notify
}

func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Mailbox[T]) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

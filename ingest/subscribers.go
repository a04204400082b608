package ingest

import (
	"iter"
	"sync"
)

// subscriber is one lossy batch consumer. Sends never block; a full buffer
// loses the batch.
type subscriber struct {
	mu     sync.RWMutex
	ch     chan Batch
	closed bool
}

func newSubscriber(size int) *subscriber {
	return &subscriber{ch: make(chan Batch, size)}
}

func (s *subscriber) send(b Batch) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- b:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

type subNode struct {
	value *subscriber
	prev  *subNode
	next  *subNode
}

// subscriberList is an appendable linked list whose append returns a removal
// closure, so subscriptions can be torn down without knowing their position.
type subscriberList struct {
	mu    sync.RWMutex
	first *subNode
	last  *subNode
	size  int
}

func (l *subscriberList) append(value *subscriber) (remove func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	node := &subNode{value: value}
	if l.last == nil {
		l.first = node
	} else {
		l.last.next = node
	}
	node.prev = l.last
	l.last = node
	l.size++

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if node == nil {
			// node was already deleted
			return
		}

		if node.prev == nil {
			l.first = node.next
		} else {
			node.prev.next = node.next
		}

		if node.next == nil {
			l.last = node.prev
		} else {
			node.next.prev = node.prev
		}

		l.size--
		node = nil
	}
}

func (l *subscriberList) all() iter.Seq[*subscriber] {
	return func(yield func(*subscriber) bool) {
		l.mu.RLock()
		defer l.mu.RUnlock()

		curr := l.first
		for curr != nil && yield(curr.value) {
			curr = curr.next
		}
	}
}

func (l *subscriberList) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.size
}

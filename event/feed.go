// Package event implements a minimal one-to-many event distribution system,
// mirroring the teacher's first-party event package (github.com/Ezkerrox/bsc/event)
// as used by core/vote/vote_pool.go: a Feed that fans a typed value out to
// any number of Subscriptions, each with its own buffered channel and error
// channel closed on Unsubscribe.
package event

import "sync"

// Feed implements one-to-many subscription. Values of any type may be
// sent; Send does not check that they share a concrete type. A Feed must
// not be copied after first use.
type Feed struct {
	mu   sync.Mutex
	subs map[*sub]struct{}
}

type sub struct {
	feed *Feed
	ch   chan any
	err  chan error
	once sync.Once
}

// Subscription represents a subscription to a Feed.
type Subscription interface {
	// Unsubscribe cancels the subscription. Err returns immediately after.
	Unsubscribe()
	// Err returns a channel closed when Unsubscribe is called.
	Err() <-chan error
}

// Subscribe adds a channel to the feed. Future sends will be delivered on
// the returned channel until the Subscription is unsubscribed.
func (f *Feed) Subscribe(channel chan any) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[*sub]struct{})
	}
	s := &sub{feed: f, ch: channel, err: make(chan error)}
	f.subs[s] = struct{}{}
	return s
}

// Send delivers to all subscribed channels, non-blocking: a subscriber
// slow enough to have a full buffer simply misses the notification rather
// than stalling the sender (these are best-effort diagnostic feeds, never
// load-bearing for correctness).
func (f *Feed) Send(value any) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	delivered := 0
	for s := range f.subs {
		select {
		case s.ch <- value:
			delivered++
		default:
		}
	}
	return delivered
}

func (s *sub) Unsubscribe() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		s.feed.mu.Unlock()
		close(s.err)
	})
}

func (s *sub) Err() <-chan error { return s.err }

// SubscriptionScope provides a facility to unsubscribe multiple
// subscriptions at once, mirroring the teacher's usage in vote_pool.go
// (pool.scope.Track / pool.scope.Close at shutdown).
type SubscriptionScope struct {
	mu     sync.Mutex
	subs   map[Subscription]struct{}
	closed bool
}

// Track starts tracking a subscription. It returns the subscription
// unchanged so callers can assign and track in one line.
func (sc *SubscriptionScope) Track(s Subscription) Subscription {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		s.Unsubscribe()
		return s
	}
	if sc.subs == nil {
		sc.subs = make(map[Subscription]struct{})
	}
	sc.subs[s] = struct{}{}
	return s
}

// Close unsubscribes every tracked subscription.
func (sc *SubscriptionScope) Close() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return
	}
	sc.closed = true
	for s := range sc.subs {
		s.Unsubscribe()
	}
	sc.subs = nil
}

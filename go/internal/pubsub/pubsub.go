package pubsub

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"
)

// Subscription is returned by Subscribe. Unsubscribe is safe to call more
// than once.
type Subscription interface {
	Unsubscribe()
}

type subscriber[V any] struct {
	id uint64
	fn func(V)
}

// Topic fans values out to every subscriber registered under a key, in
// registration order. It is safe for concurrent use.
type Topic[K comparable, V any] struct {
	name   string
	mu     sync.RWMutex
	nextID uint64
	subs   map[K][]subscriber[V]
}

// NewTopic creates an empty topic. The name only shows up in logs.
func NewTopic[K comparable, V any](name string) *Topic[K, V] {
	return &Topic[K, V]{
		name: name,
		subs: make(map[K][]subscriber[V]),
	}
}

// Subscribe registers fn for key.
func (t *Topic[K, V]) Subscribe(key K, fn func(V)) Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.subs[key] = append(t.subs[key], subscriber[V]{id: id, fn: fn})
	return &subscription[K, V]{topic: t, key: key, id: id}
}

// Publish invokes every subscriber for key with v and returns how many were
// called. A panicking subscriber is logged and skipped.
func (t *Topic[K, V]) Publish(key K, v V) int {
	t.mu.RLock()
	subs := make([]subscriber[V], len(t.subs[key]))
	copy(subs, t.subs[key])
	t.mu.RUnlock()

	for _, s := range subs {
		t.call(key, s, v)
	}
	return len(subs)
}

func (t *Topic[K, V]) call(key K, s subscriber[V], v V) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("topic", t.name).
				Str("key", fmt.Sprint(key)).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("subscriber panicked")
		}
	}()
	s.fn(v)
}

// Len returns the number of subscribers for key.
func (t *Topic[K, V]) Len(key K) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs[key])
}

// Clear drops every subscriber.
func (t *Topic[K, V]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = make(map[K][]subscriber[V])
}

func (t *Topic[K, V]) remove(key K, id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	subs := t.subs[key]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		next := make([]subscriber[V], 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(t.subs, key)
		} else {
			t.subs[key] = next
		}
		return
	}
}

type subscription[K comparable, V any] struct {
	once  sync.Once
	topic *Topic[K, V]
	key   K
	id    uint64
}

func (s *subscription[K, V]) Unsubscribe() {
	s.once.Do(func() { s.topic.remove(s.key, s.id) })
}

// Feed is a topic with a single implicit key.
type Feed[V any] struct {
	topic *Topic[struct{}, V]
}

// NewFeed creates an empty feed.
func NewFeed[V any](name string) *Feed[V] {
	return &Feed[V]{topic: NewTopic[struct{}, V](name)}
}

func (f *Feed[V]) Subscribe(fn func(V)) Subscription { return f.topic.Subscribe(struct{}{}, fn) }
func (f *Feed[V]) Publish(v V) int                   { return f.topic.Publish(struct{}{}, v) }
func (f *Feed[V]) Len() int                          { return f.topic.Len(struct{}{}) }
func (f *Feed[V]) Clear()                            { f.topic.Clear() }

// Multi groups subscriptions so they can be dropped together.
type Multi []Subscription

func (m Multi) Unsubscribe() {
	for _, s := range m {
		if s != nil {
			s.Unsubscribe()
		}
	}
}

// Package events is the in-process typed event bus connecting file watchers,
// the polling fallback and the HTTP control endpoint to the dev server
// dispatcher. Nothing here is durable.
package events

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Bus delivers published values to subscribers of the value's type.
// Publish blocks until every subscriber has accepted the value or ctx ends.
type Bus struct {
	mu        sync.RWMutex
	subs      map[reflect.Type]map[uint64]*subscriber
	nextID    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

type subscriber struct {
	deliver func(ctx context.Context, evt any) error
	close   func()
}

// NewBus returns an open bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type]map[uint64]*subscriber)}
}

// Subscribe registers for events of type T. Interface types receive every
// event implementing them. The returned func unsubscribes and closes the channel.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	typ := reflect.TypeFor[T]()
	ch := make(chan T, buffer)

	// done is closed before ch; in-flight deliveries hold sendMu so ch is
	// only closed once no send can be pending.
	done := make(chan struct{})
	var (
		chOnce sync.Once
		sendMu sync.RWMutex
	)
	closeCh := func() {
		chOnce.Do(func() {
			close(done)
			sendMu.Lock()
			close(ch)
			sendMu.Unlock()
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed.Load() {
		closeCh()
		return ch, func() {}
	}

	id := b.nextID.Add(1)
	if b.subs[typ] == nil {
		b.subs[typ] = make(map[uint64]*subscriber)
	}
	b.subs[typ][id] = &subscriber{
		deliver: func(ctx context.Context, evt any) error {
			v, ok := evt.(T)
			if !ok {
				return ferrors.InternalError("event type mismatch").
					WithContext("expected", typ.String()).
					Build()
			}
			sendMu.RLock()
			defer sendMu.RUnlock()
			select {
			case <-done:
				return nil
			default:
			}
			select {
			case ch <- v:
				return nil
			case <-done:
				// Unsubscribed while waiting; the event is dropped.
				return nil
			case <-ctx.Done():
				return ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "event publish canceled").
					WithContext("event_type", typ.String()).
					Build()
			}
		},
		close: closeCh,
	}

	var unsubOnce sync.Once
	return ch, func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			if typeSubs, ok := b.subs[typ]; ok {
				delete(typeSubs, id)
				if len(typeSubs) == 0 {
					delete(b.subs, typ)
				}
			}
			b.mu.Unlock()
			closeCh()
		})
	}
}

// SubscriberCount returns the number of active subscribers for T.
func SubscriberCount[T any](b *Bus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[reflect.TypeFor[T]()])
}

// Publish delivers evt to every matching subscriber.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return ferrors.ValidationError("event cannot be nil").Build()
	}
	if b.closed.Load() {
		return ferrors.RuntimeError("event bus is closed").Build()
	}

	typ := reflect.TypeOf(evt)
	b.mu.RLock()
	var targets []*subscriber
	for subType, typeSubs := range b.subs {
		if subType != typ && (subType.Kind() != reflect.Interface || !typ.Implements(subType)) {
			continue
		}
		for _, s := range typeSubs {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := s.deliver(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every subscription channel. Later publishes fail.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed.Store(true)
		var all []*subscriber
		for _, typeSubs := range b.subs {
			for _, s := range typeSubs {
				all = append(all, s)
			}
		}
		b.subs = make(map[reflect.Type]map[uint64]*subscriber)
		b.mu.Unlock()

		for _, s := range all {
			s.close()
		}
	})
}

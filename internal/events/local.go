package events

import (
	"context"
	"sync"
)

type subscriber struct {
	in   chan Event
	done <-chan struct{}
}

// LocalBus delivers events to subscribers in the same process. Publish blocks
// until every live subscriber has taken the event.
type LocalBus struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: map[*subscriber]struct{}{}}
}

func (b *LocalBus) Subscribe(ctx context.Context) (<-chan Event, error) {
	sub := &subscriber{in: make(chan Event), done: ctx.Done()}
	out := make(chan Event, 64)

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
		}()
		for {
			select {
			case <-sub.done:
				return
			case e := <-sub.in:
				select {
				case out <- e:
				case <-sub.done:
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *LocalBus) Publish(ctx context.Context, e Event) error {
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		select {
		case s.in <- e:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Package bus provides an in-process domain.SignalBus used when no Redis is
// configured.
package bus

import (
	"context"
	"path"
	"sync"

	"github.com/alanyoungcy/tpwatch/internal/domain"
)

// subscriberBuffer is the per-subscriber queue depth. Slow subscribers
// miss messages instead of blocking publishers.
const subscriberBuffer = 128

type subscriber struct {
	pattern string
	ch      chan []byte
}

// Local fans published payloads out to subscribers in the same process.
// Channel names match with path.Match, so "prices*" style patterns work like
// Redis PSUBSCRIBE.
type Local struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// NewLocal creates an empty bus.
func NewLocal() *Local {
	return &Local{subs: make(map[*subscriber]struct{})}
}

// Publish delivers a copy of payload to every matching subscriber that has
// room in its buffer.
func (b *Local) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		if !matches(s.pattern, channel) {
			continue
		}
		msg := make([]byte, len(payload))
		copy(msg, payload)
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber for channel until ctx is done, at which
// point the returned channel is closed.
func (b *Local) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	s := &subscriber{pattern: channel, ch: make(chan []byte, subscriberBuffer)}

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()

	return s.ch, nil
}

func matches(pattern, channel string) bool {
	if pattern == channel {
		return true
	}
	ok, err := path.Match(pattern, channel)
	return err == nil && ok
}

// Compile-time interface check.
var _ domain.SignalBus = (*Local)(nil)

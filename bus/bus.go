// Package bus implements the pub/sub broadcast bus (C9): a recipient-keyed
// fan-out of newly pushed messages to live WebSocket subscribers.
package bus

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// channelCapacity bounds each subscriber's outbound buffer; a slow
// subscriber drops older frames rather than blocking the publisher (§4.6).
const channelCapacity = 32

// Bus maps a recipient address body to the set of channels subscribed to
// it.
type Bus struct {
	mu     sync.Mutex
	topics map[string]map[chan []byte]struct{}
	logger zerolog.Logger
}

func New() *Bus {
	return &Bus{
		topics: make(map[string]map[chan []byte]struct{}),
		logger: log.With().Str("module", "bus").Logger(),
	}
}

// Subscribe registers a new bounded channel for recipient and returns it
// along with an unsubscribe function. When the last subscriber for a
// recipient unsubscribes, the topic entry is pruned.
func (b *Bus) Subscribe(recipient []byte) (ch chan []byte, unsubscribe func()) {
	key := string(recipient)
	ch = make(chan []byte, channelCapacity)

	b.mu.Lock()
	subs, ok := b.topics[key]
	if !ok {
		subs = make(map[chan []byte]struct{})
		b.topics[key] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() { b.unsubscribe(key, ch) }
}

func (b *Bus) unsubscribe(key string, ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[key]
	if !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	if len(subs) == 0 {
		delete(b.topics, key)
	}
}

// Publish delivers frame to every current subscriber of recipient. Under
// back-pressure, a full subscriber channel has its oldest buffered frame
// dropped to make room rather than blocking the publisher. The send happens
// under the same lock unsubscribe closes channels under, so a channel is
// never sent to after it is closed.
func (b *Bus) Publish(recipient []byte, frame []byte) {
	key := string(recipient)

	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.topics[key] {
		select {
		case ch <- frame:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
				b.logger.Warn().Msg("subscriber channel still full after drop, skipping frame")
			}
		}
	}
}

// SubscriberCount reports the number of live subscribers for recipient,
// mainly useful for tests and diagnostics.
func (b *Bus) SubscriberCount(recipient []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[string(recipient)])
}

package genclient

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// SyncChannel is the pub/sub channel name shared by all clients of a user.
const SyncChannel = "journal_sync"

type MessageType string

const (
	// MessageJobUpdated means the persisted job id or result changed.
	MessageJobUpdated MessageType = "job-updated"
	// MessageDataChanged asks sibling clients to refresh their views.
	MessageDataChanged MessageType = "data-changed"
)

type Message struct {
	Type   MessageType `json:"type"`
	Origin string      `json:"origin"`
	JobID  string      `json:"job_id,omitempty"`
}

// Bus fans messages out to every subscriber, including the publisher's own
// subscriptions; receivers filter on Origin.
type Bus interface {
	Publish(ctx context.Context, m Message) error
	Subscribe(ctx context.Context) (<-chan Message, func(), error)
}

// MemoryBus connects clients living in one process.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[chan Message]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[chan Message]struct{})}
}

func (b *MemoryBus) Publish(_ context.Context, m Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- m:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(context.Context) (<-chan Message, func(), error) {
	ch := make(chan Message, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; !ok {
			return
		}
		delete(b.subs, ch)
		close(ch)
	}
	return ch, unsub, nil
}

// RawBus moves opaque payloads, for example a redis channel.
type RawBus interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, func(), error)
}

type jsonBus struct {
	raw RawBus
}

// NewJSONBus encodes messages as JSON on top of raw.
func NewJSONBus(raw RawBus) Bus {
	return &jsonBus{raw: raw}
}

func (b *jsonBus) Publish(ctx context.Context, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.raw.Publish(ctx, payload)
}

func (b *jsonBus) Subscribe(ctx context.Context) (<-chan Message, func(), error) {
	in, cancel, err := b.raw.Subscribe(ctx)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan Message, 16)
	go func() {
		defer close(out)
		for payload := range in {
			var m Message
			if err := json.Unmarshal(payload, &m); err != nil || m.Type == "" {
				logrus.WithError(err).Debug("dropping malformed sync message")
				continue
			}
			select {
			case out <- m:
			default:
			}
		}
	}()
	return out, cancel, nil
}

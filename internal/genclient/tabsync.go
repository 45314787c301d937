package genclient

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TabSync refreshes a view when a sibling client reports changed data or
// when the view becomes visible again.
type TabSync struct {
	bus        Bus
	origin     string
	refresh    func()
	autoReload bool

	mu      sync.Mutex
	visible bool
	unsub   func()
}

func NewTabSync(bus Bus, refresh func(), autoReload bool) *TabSync {
	return &TabSync{
		bus:        bus,
		origin:     uuid.NewString(),
		refresh:    refresh,
		autoReload: autoReload,
		visible:    true,
	}
}

func (t *TabSync) Start(ctx context.Context) error {
	if t.bus == nil {
		return nil
	}
	msgs, unsub, err := t.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.unsub = unsub
	t.mu.Unlock()

	go func() {
		for m := range msgs {
			if m.Type != MessageDataChanged || m.Origin == t.origin {
				continue
			}
			if t.shouldRefresh() {
				t.refresh()
			}
		}
	}()
	return nil
}

func (t *TabSync) shouldRefresh() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.visible && t.autoReload
}

func (t *TabSync) VisibilityChanged(visible bool) {
	t.mu.Lock()
	t.visible = visible
	t.mu.Unlock()
	if visible && t.autoReload {
		t.refresh()
	}
}

// BroadcastUpdate tells sibling clients that data changed.
func (t *TabSync) BroadcastUpdate(ctx context.Context) {
	if t.bus == nil {
		return
	}
	if err := t.bus.Publish(ctx, Message{Type: MessageDataChanged, Origin: t.origin}); err != nil {
		logrus.WithError(err).Warn("broadcasting data change failed")
	}
}

func (t *TabSync) Close() {
	t.mu.Lock()
	unsub := t.unsub
	t.unsub = nil
	t.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

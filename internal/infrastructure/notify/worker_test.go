package notify_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domorder "github.com/likha-market/marketplace/internal/domain/order"
	domoutbox "github.com/likha-market/marketplace/internal/domain/outbox"
	"github.com/likha-market/marketplace/internal/infrastructure/notify"
	"github.com/likha-market/marketplace/internal/infrastructure/outbox"
)

// recordingSubscriber captures handlers directly so the test can invoke them
// without the bus's async dispatch.
type recordingSubscriber struct {
	handlers map[string][]domoutbox.Handler
}

func (s *recordingSubscriber) Subscribe(eventName string, h domoutbox.Handler) {
	if s.handlers == nil {
		s.handlers = make(map[string][]domoutbox.Handler)
	}
	s.handlers[eventName] = append(s.handlers[eventName], h)
}

func (s *recordingSubscriber) deliver(t *testing.T, e domoutbox.Event) {
	t.Helper()
	for _, h := range s.handlers[e.EventName()] {
		require.NoError(t, h(context.Background(), e))
	}
}

func TestWorker_SubscribesToLifecycleEvents(t *testing.T) {
	sub := &recordingSubscriber{}
	notify.New(sub, nil).Start()

	assert.Len(t, sub.handlers["order.created"], 1)
	assert.Len(t, sub.handlers["order.cancelled"], 1)
	assert.Empty(t, sub.handlers["order.shipped"])
}

func TestWorker_IgnoresForeignEventTypes(t *testing.T) {
	sub := &recordingSubscriber{}
	notify.New(sub, nil).Start()

	// An event with a matching name but unexpected type is dropped, not an
	// error: fanout must keep going for other subscribers.
	sub.deliver(t, fakeEvent{name: "order.created"})
}

type fakeEvent struct{ name string }

func (e fakeEvent) EventName() string { return e.name }

func TestWorker_EndToEndThroughBus(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	bus := outbox.NewBus(nil)
	notify.New(bus, nil).Start()
	bus.Subscribe("order.created", func(_ context.Context, e domoutbox.Event) error {
		evt := e.(domorder.OrderCreatedEvent)
		mu.Lock()
		seen = append(seen, evt.OrderID)
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	err := bus.Publish(ctx, domorder.OrderCreatedEvent{
		OrderID:   "o1",
		SellerIDs: []string{"s1", "s2"},
	})
	require.NoError(t, err)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	bus.Stop(stopCtx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"o1"}, seen)
}

// Package notify fans order lifecycle events out to the affected sellers.
// Delivery is a structured log line per seller; a real channel (email, push)
// would slot in behind the same handler.
package notify

import (
	"context"

	domorder "github.com/likha-market/marketplace/internal/domain/order"
	domoutbox "github.com/likha-market/marketplace/internal/domain/outbox"
	"github.com/likha-market/marketplace/internal/observability"
	"github.com/likha-market/marketplace/internal/observability/logctx"
)

type Worker struct {
	subscriber domoutbox.Subscriber

	log         observability.Logger
	notifyCount observability.Counter
}

func New(subscriber domoutbox.Subscriber, tel observability.Observability) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Worker{
		subscriber:  subscriber,
		log:         tel.Logger().With(observability.F("component", "notify_worker")),
		notifyCount: tel.Metrics().Counter(observability.MSellerNotifications),
	}
}

func (w *Worker) Start() {
	w.subscriber.Subscribe(domorder.OrderCreatedEvent{}.EventName(), w.handleOrderCreated)
	w.subscriber.Subscribe(domorder.OrderCancelledEvent{}.EventName(), w.handleOrderCancelled)
}

func (w *Worker) handleOrderCreated(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderCreatedEvent)
	if !ok {
		return nil
	}
	w.notifySellers(ctx, "new_order", evt.OrderID, evt.SellerIDs)
	return nil
}

func (w *Worker) handleOrderCancelled(ctx context.Context, e domoutbox.Event) error {
	evt, ok := e.(domorder.OrderCancelledEvent)
	if !ok {
		return nil
	}
	w.notifySellers(ctx, "order_cancelled", evt.OrderID, evt.SellerIDs)
	return nil
}

func (w *Worker) notifySellers(ctx context.Context, kind, orderID string, sellerIDs []string) {
	logger := logctx.FromOr(ctx, w.log)
	for _, sellerID := range sellerIDs {
		logger.Info("seller_notification",
			observability.F("kind", kind),
			observability.F("order_id", orderID),
			observability.F("seller_id", sellerID),
		)
		w.notifyCount.Add(1, observability.L("kind", kind))
	}
}

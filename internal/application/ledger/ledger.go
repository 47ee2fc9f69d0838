// Package ledger owns the order/inventory consistency rule: every unit of
// stock sold is reserved inside the transaction that creates the order and
// restored inside the transaction that approves its cancellation. No partial
// state is ever visible; conflicting commits abort and surface as
// docstore.ErrConflict, which is safe to retry blindly.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/likha-market/marketplace/internal/docstore"
	domorder "github.com/likha-market/marketplace/internal/domain/order"
	domoutbox "github.com/likha-market/marketplace/internal/domain/outbox"
	"github.com/likha-market/marketplace/internal/observability"
)

const (
	serviceName     = "inventory-ledger"
	spanPrefix      = "Ledger."
	publishPeer     = "outbox"
	publishTimeout  = 300 * time.Millisecond
	opCreateOrder   = "ledger.create_order"
	opRequestCancel = "ledger.request_cancellation"
	opApproveCancel = "ledger.approve_cancellation"
	opRejectCancel  = "ledger.reject_cancellation"
)

var (
	ErrNotFound = domorder.ErrNotFound
	ErrConflict = docstore.ErrConflict
	ErrStore    = errors.New("ledger: store failure")
)

// Ledger executes the stock reservation and restoration transactions against
// an injected document store.
type Ledger struct {
	store       docstore.Store
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	policy      OversellPolicy
	tel         observability.Observability

	log observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	clampCounter observability.Counter   // stock_clamped_units_total
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

// New wires the ledger. publisher may be nil when no event fanout is wanted;
// tel may be nil to run without telemetry.
func New(store docstore.Store, idGen IDGenerator, publisher domoutbox.Publisher, policy OversellPolicy, tel observability.Observability) *Ledger {
	if tel == nil {
		tel = observability.Nop()
	}
	log := tel.Logger().With(observability.F("service", serviceName))
	metrics := tel.Metrics()

	return &Ledger{
		store:        store,
		idGenerator:  idGen,
		publisher:    publisher,
		policy:       policy,
		tel:          tel,
		log:          log,
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		clampCounter: metrics.Counter(observability.MStockClamped),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

func (l *Ledger) finishOp(op string, start time.Time, outcome string) {
	l.reqCounter.Add(1,
		observability.L("use_case", op),
		observability.L("outcome", outcome),
	)
	l.durHistogram.Observe(time.Since(start).Seconds(),
		observability.L("use_case", op),
	)
}

// publish sends a domain event through the outbox with its own timeout. A
// publish failure never fails the committed operation; it is logged and
// counted instead.
func (l *Ledger) publish(ctx context.Context, endpoint string, e domoutbox.Event) {
	if l.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	err := l.publisher.Publish(pubCtx, e)
	if err != nil {
		outcome = "error"
		l.log.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}

	l.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	l.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
	)
}

func wrapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, docstore.ErrConflict) {
		return ErrConflict
	}
	return fmt.Errorf("%w: %w", ErrStore, err)
}

func orderKey(id string) docstore.Key {
	return docstore.Key{Collection: docstore.CollectionOrders, ID: id}
}

func productKey(id string) docstore.Key {
	return docstore.Key{Collection: docstore.CollectionProducts, ID: id}
}

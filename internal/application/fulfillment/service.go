// Package fulfillment moves orders through their shipping lifecycle. It owns
// tracking number assignment and the Shipped and Delivered transitions; stock
// is never touched here.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/likha-market/marketplace/internal/docstore"
	domorder "github.com/likha-market/marketplace/internal/domain/order"
	domoutbox "github.com/likha-market/marketplace/internal/domain/outbox"
	"github.com/likha-market/marketplace/internal/observability"
	"github.com/likha-market/marketplace/internal/observability/logctx"
)

const (
	serviceName    = "fulfillment"
	defaultCourier = "J&T Express"
	opShip         = "fulfillment.ship"
	opDeliver      = "fulfillment.mark_delivered"
)

var ErrStore = errors.New("fulfillment: store failure")

// Service executes shipping transitions against the shared document store.
type Service struct {
	store     docstore.Store
	publisher domoutbox.Publisher

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram

	// newTracking is swapped in tests for a deterministic generator.
	newTracking func() string
}

func New(store docstore.Store, publisher domoutbox.Publisher, tel observability.Observability) *Service {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	return &Service{
		store:        store,
		publisher:    publisher,
		log:          tel.Logger().With(observability.F("service", serviceName)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		newTracking:  NewTrackingNumber,
	}
}

// NewTrackingNumber produces a J&T style tracking code: a "9" followed by
// eleven random digits.
func NewTrackingNumber() string {
	var b strings.Builder
	b.Grow(12)
	b.WriteByte('9')
	for i := 0; i < 11; i++ {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

type ShipInput struct {
	OrderID string
	// Courier defaults to J&T Express when empty.
	Courier string
	// TrackingNumber is generated when empty.
	TrackingNumber string
}

type ShipResult struct {
	TrackingNumber string
	Courier        string
}

// Ship assigns tracking details and moves a Processing order to Shipped.
func (s *Service) Ship(ctx context.Context, input ShipInput) (*ShipResult, error) {
	logger := logctx.FromOr(ctx, s.log).With(
		observability.F("use_case", opShip),
		observability.F("order_id", input.OrderID),
	)
	start := time.Now()

	courier := input.Courier
	if courier == "" {
		courier = defaultCourier
	}
	tracking := input.TrackingNumber
	if tracking == "" {
		tracking = s.newTracking()
	}

	var entity domorder.Order
	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		entity = domorder.Order{}
		if err := tx.Get(orderKey(input.OrderID), &entity); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return domorder.ErrNotFound
			}
			return err
		}
		if err := entity.Ship(tracking, courier); err != nil {
			return err
		}
		tx.Set(orderKey(input.OrderID), &entity)
		return nil
	})
	if err != nil {
		s.finishOp(opShip, start, "error")
		if errors.Is(err, domorder.ErrNotFound) || errors.Is(err, domorder.ErrInvalidStateTransition) {
			logger.Warn("ship_rejected", observability.F("error", err.Error()))
			return nil, err
		}
		logger.Error("ship_failed", observability.F("error", err.Error()))
		return nil, wrapStoreError(err)
	}

	s.finishOp(opShip, start, "success")
	logger.Info("order_shipped",
		observability.F("tracking_number", tracking),
		observability.F("courier", courier),
	)

	s.publish(ctx, domorder.NewOrderShippedEvent(&entity))

	return &ShipResult{TrackingNumber: tracking, Courier: courier}, nil
}

// MarkDelivered moves a Shipped order to its terminal Delivered status.
func (s *Service) MarkDelivered(ctx context.Context, orderID string) error {
	logger := logctx.FromOr(ctx, s.log).With(
		observability.F("use_case", opDeliver),
		observability.F("order_id", orderID),
	)
	start := time.Now()

	err := s.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		var entity domorder.Order
		if err := tx.Get(orderKey(orderID), &entity); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return domorder.ErrNotFound
			}
			return err
		}
		if err := entity.MarkDelivered(); err != nil {
			return err
		}
		tx.Set(orderKey(orderID), &entity)
		return nil
	})
	if err != nil {
		s.finishOp(opDeliver, start, "error")
		if errors.Is(err, domorder.ErrNotFound) || errors.Is(err, domorder.ErrInvalidStateTransition) {
			logger.Warn("delivery_rejected", observability.F("error", err.Error()))
			return err
		}
		logger.Error("delivery_failed", observability.F("error", err.Error()))
		return wrapStoreError(err)
	}

	s.finishOp(opDeliver, start, "success")
	logger.Info("order_delivered")
	return nil
}

func (s *Service) finishOp(op string, start time.Time, outcome string) {
	s.reqCounter.Add(1,
		observability.L("use_case", op),
		observability.L("outcome", outcome),
	)
	s.durHistogram.Observe(time.Since(start).Seconds(),
		observability.L("use_case", op),
	)
}

func (s *Service) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		s.log.Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err.Error()),
		)
	}
}

func orderKey(id string) docstore.Key {
	return docstore.Key{Collection: docstore.CollectionOrders, ID: id}
}

func wrapStoreError(err error) error {
	if errors.Is(err, docstore.ErrConflict) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStore, err)
}

package ledger

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/likha-market/marketplace/internal/docstore"
	"github.com/likha-market/marketplace/internal/domain/catalog"
	domorder "github.com/likha-market/marketplace/internal/domain/order"
	"github.com/likha-market/marketplace/internal/observability"
	"github.com/likha-market/marketplace/internal/observability/logctx"
)

// RequestCancellation parks a Processing order in Cancellation Requested and
// stores the customer's reason. Stock is not touched: only an approval
// restores it, so a request alone cannot be used to game inventory.
func (l *Ledger) RequestCancellation(ctx context.Context, orderID, reason string) error {
	logger := logctx.FromOr(ctx, l.log).With(
		observability.F("use_case", opRequestCancel),
		observability.F("order_id", orderID),
	)
	start := time.Now()

	if reason == "" {
		l.finishOp(opRequestCancel, start, "error")
		return domorder.ErrEmptyReason
	}

	var entity domorder.Order
	err := l.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		entity = domorder.Order{}
		if err := tx.Get(orderKey(orderID), &entity); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return domorder.ErrNotFound
			}
			return err
		}
		if err := entity.RequestCancellation(reason); err != nil {
			return err
		}
		tx.Set(orderKey(orderID), &entity)
		return nil
	})
	if err != nil {
		l.finishOp(opRequestCancel, start, "error")
		if errors.Is(err, domorder.ErrNotFound) || errors.Is(err, domorder.ErrInvalidStateTransition) {
			logger.Warn("cancellation_request_rejected", observability.F("error", err.Error()))
			return err
		}
		logger.Error("cancellation_request_failed", observability.F("error", err.Error()))
		return wrapStoreError(err)
	}

	l.finishOp(opRequestCancel, start, "success")
	logger.Info("cancellation_requested", observability.F("reason", reason))

	l.publish(ctx, domorder.OrderCancellationRequestedEvent{}.EventName(), domorder.NewOrderCancellationRequestedEvent(&entity))
	return nil
}

// RejectCancellation returns a Cancellation Requested order to Processing.
func (l *Ledger) RejectCancellation(ctx context.Context, orderID string) error {
	logger := logctx.FromOr(ctx, l.log).With(
		observability.F("use_case", opRejectCancel),
		observability.F("order_id", orderID),
	)
	start := time.Now()

	err := l.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		var entity domorder.Order
		if err := tx.Get(orderKey(orderID), &entity); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return domorder.ErrNotFound
			}
			return err
		}
		if err := entity.RejectCancellation(); err != nil {
			return err
		}
		tx.Set(orderKey(orderID), &entity)
		return nil
	})
	if err != nil {
		l.finishOp(opRejectCancel, start, "error")
		if errors.Is(err, domorder.ErrNotFound) || errors.Is(err, domorder.ErrInvalidStateTransition) {
			return err
		}
		return wrapStoreError(err)
	}

	l.finishOp(opRejectCancel, start, "success")
	logger.Info("cancellation_rejected")
	return nil
}

// ApproveCancellation cancels the order and restores every reserved unit in
// one atomic transaction. Products deleted since purchase are skipped without
// failing the operation; approving an already cancelled order is a no-op.
func (l *Ledger) ApproveCancellation(ctx context.Context, orderID string) (err error) {
	logger := logctx.FromOr(ctx, l.log).With(
		observability.F("use_case", opApproveCancel),
		observability.F("order_id", orderID),
	)

	ctx, span := l.tel.Tracer().Start(ctx, spanPrefix+"ApproveCancellation",
		attribute.String("use_case", opApproveCancel),
		attribute.String("order.id", orderID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	alreadyCancelled := false
	var entity domorder.Order

	defer func() {
		lat := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		l.finishOp(opApproveCancel, start, outcome)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	err = l.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		alreadyCancelled = false
		entity = domorder.Order{}

		if getErr := tx.Get(orderKey(orderID), &entity); getErr != nil {
			if errors.Is(getErr, docstore.ErrNotFound) {
				return domorder.ErrNotFound
			}
			return getErr
		}

		if entity.Status == domorder.StatusCancelled {
			alreadyCancelled = true
			return nil
		}

		// All product reads must precede the first write.
		products := make(map[string]*catalog.Product)
		for _, productID := range entity.ProductIDs() {
			var p catalog.Product
			getErr := tx.Get(productKey(productID), &p)
			if errors.Is(getErr, docstore.ErrNotFound) {
				// Deleted since purchase; restoration skips it.
				continue
			}
			if getErr != nil {
				return getErr
			}
			products[productID] = &p
		}

		if trErr := entity.ApproveCancellation(); trErr != nil {
			return trErr
		}

		for productID, p := range products {
			for _, item := range entity.ItemsForProduct(productID) {
				if restErr := p.Restore(item.VariationID, item.Quantity); restErr != nil {
					return restErr
				}
			}
		}

		tx.Set(orderKey(orderID), &entity)
		for productID, p := range products {
			tx.Set(productKey(productID), p)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, domorder.ErrNotFound):
			outcome, statusText = "error", "ORDER_NOT_FOUND"
			return err
		case errors.Is(err, domorder.ErrInvalidStateTransition):
			outcome, statusText = "error", "INVALID_TRANSITION"
			return err
		case errors.Is(err, docstore.ErrConflict):
			outcome, statusText = "error", "TX_CONFLICT"
			return ErrConflict
		default:
			outcome, statusText = "error", "TX_FAILED"
			return wrapStoreError(err)
		}
	}

	if alreadyCancelled {
		statusText = "ALREADY_CANCELLED"
		span.AddEvent("order.cancellation_noop")
		return nil
	}

	span.AddEvent("order.cancelled",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)

	l.publish(ctx, domorder.OrderCancelledEvent{}.EventName(), domorder.NewOrderCancelledEvent(&entity))
	return nil
}

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

// CartLine is one checkout line: a product reference with the cart's frozen
// snapshot of name, image, and unit price. The snapshot is embedded verbatim
// in the order items; only the stock deduction consults the live product.
type CartLine struct {
	ProductID     string
	VariationID   string
	VariationName string
	Name          string
	Image         string
	SellerID      string
	UnitPrice     int64
	Quantity      int
}

type CreateOrderInput struct {
	CustomerID      string
	CustomerName    string
	Lines           []CartLine
	TotalAmount     int64
	PaymentMethod   domorder.PaymentMethod
	DeliveryMethod  domorder.DeliveryMethod
	ShippingAddress *domorder.Address
}

type CreateOrderResult struct {
	OrderID string
	Status  domorder.Status
	// ClampedUnits is the number of requested units that could not be
	// reserved because stock floored at zero (clamp policy only).
	ClampedUnits int
}

// CreateOrder allocates a Processing order embedding the cart snapshot and
// decrements the referenced stock, all in one atomic transaction. If the
// commit fails nothing was persisted and the caller may retry.
func (l *Ledger) CreateOrder(ctx context.Context, input CreateOrderInput) (_ *CreateOrderResult, err error) {
	logger := logctx.FromOr(ctx, l.log).With(observability.F("use_case", opCreateOrder))

	ctx, span := l.tel.Tracer().Start(ctx, spanPrefix+"CreateOrder",
		attribute.String("use_case", opCreateOrder),
		attribute.String("order.customer_id", input.CustomerID),
		attribute.Int("order.lines", len(input.Lines)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var orderID string
	clamped := 0

	defer func() {
		lat := time.Since(start).Seconds()

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		l.finishOp(opCreateOrder, start, outcome)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if clamped > 0 {
			fields = append(fields, observability.F("clamped_units", clamped))
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

	items := make([]domorder.Item, 0, len(input.Lines))
	for _, line := range input.Lines {
		items = append(items, domorder.Item{
			ProductID:     line.ProductID,
			SellerID:      line.SellerID,
			Name:          line.Name,
			Image:         line.Image,
			UnitPrice:     line.UnitPrice,
			Quantity:      line.Quantity,
			VariationID:   line.VariationID,
			VariationName: line.VariationName,
		})
	}

	orderID = l.idGenerator.NewID()
	entity, err := domorder.New(orderID, input.CustomerID, input.CustomerName, items,
		input.TotalAmount, input.PaymentMethod, input.DeliveryMethod, input.ShippingAddress)
	if err != nil {
		outcome, statusText = "error", "VALIDATION_FAILED"
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		outcome, statusText = "error", "CONTEXT_CANCELED"
		return nil, err
	}

	err = l.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		// The transaction function can re-run on conflict; start each
		// attempt from a clean slate.
		clamped = 0

		// All reads first: the store contract rejects reads issued after
		// the first buffered write.
		products := make(map[string]*catalog.Product, len(input.Lines))
		for _, productID := range entity.ProductIDs() {
			var p catalog.Product
			getErr := tx.Get(productKey(productID), &p)
			if errors.Is(getErr, docstore.ErrNotFound) {
				// Product deleted since it was carted; the order still
				// records the snapshot line.
				continue
			}
			if getErr != nil {
				return getErr
			}
			products[productID] = &p
		}

		for _, line := range input.Lines {
			p, ok := products[line.ProductID]
			if !ok {
				continue
			}
			short, resErr := p.Reserve(line.VariationID, line.Quantity, l.policy == OversellClamp)
			if errors.Is(resErr, catalog.ErrVariationNotFound) {
				// The carted variation no longer exists; nothing to deduct.
				continue
			}
			if resErr != nil {
				return resErr
			}
			clamped += short
		}

		tx.Set(orderKey(entity.ID), entity)
		for productID, p := range products {
			tx.Set(productKey(productID), p)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrInsufficientStock):
			outcome, statusText = "error", "INSUFFICIENT_STOCK"
			return nil, err
		case errors.Is(err, docstore.ErrConflict):
			outcome, statusText = "error", "TX_CONFLICT"
			return nil, ErrConflict
		default:
			outcome, statusText = "error", "TX_FAILED"
			return nil, wrapStoreError(err)
		}
	}

	if clamped > 0 {
		l.clampCounter.Add(float64(clamped))
	}

	span.SetAttributes(attribute.String("order.status", string(entity.Status)))
	span.AddEvent("order.created",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)

	l.publish(ctx, domorder.OrderCreatedEvent{}.EventName(), domorder.NewOrderCreatedEvent(entity))

	return &CreateOrderResult{
		OrderID:      entity.ID,
		Status:       entity.Status,
		ClampedUnits: clamped,
	}, nil
}

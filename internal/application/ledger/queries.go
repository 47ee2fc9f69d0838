package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/likha-market/marketplace/internal/docstore"
	domorder "github.com/likha-market/marketplace/internal/domain/order"
)

// GetOrder fetches one order by id.
func (l *Ledger) GetOrder(ctx context.Context, orderID string) (*domorder.Order, error) {
	if orderID == "" {
		return nil, domorder.ErrNotFound
	}
	var entity domorder.Order
	if err := l.store.Get(ctx, orderKey(orderID), &entity); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, domorder.ErrNotFound
		}
		return nil, wrapStoreError(err)
	}
	return &entity, nil
}

// ListByCustomer returns the customer's orders, newest first.
func (l *Ledger) ListByCustomer(ctx context.Context, customerID string) ([]*domorder.Order, error) {
	return l.listOrders(ctx, func(o *domorder.Order) bool {
		return o.CustomerID == customerID
	})
}

// ListBySeller returns orders involving the seller, newest first.
func (l *Ledger) ListBySeller(ctx context.Context, sellerID string) ([]*domorder.Order, error) {
	return l.listOrders(ctx, func(o *domorder.Order) bool {
		return slices.Contains(o.SellerIDs, sellerID)
	})
}

func (l *Ledger) listOrders(ctx context.Context, keep func(*domorder.Order) bool) ([]*domorder.Order, error) {
	var orders []*domorder.Order
	err := l.store.List(ctx, docstore.CollectionOrders, func(raw []byte) error {
		var o domorder.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return fmt.Errorf("decode order: %w", err)
		}
		if keep(&o) {
			orders = append(orders, &o)
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreError(err)
	}

	slices.SortFunc(orders, func(a, b *domorder.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return orders, nil
}

package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/likha-market/marketplace/internal/domain/order"
)

func newTestOrder(t *testing.T) *order.Order {
	t.Helper()
	o, err := order.New("o1", "c1", "Maria Cruz", []order.Item{
		{ProductID: "p1", SellerID: "s1", Name: "Inabel Blanket", UnitPrice: 1500_00, Quantity: 2, VariationID: "v1", VariationName: "Blue"},
		{ProductID: "p2", SellerID: "s2", Name: "Burnay Jar", UnitPrice: 800_00, Quantity: 1},
		{ProductID: "p3", SellerID: "s1", Name: "Abel Scarf", UnitPrice: 400_00, Quantity: 1},
	}, 4200_00, order.PaymentGCash, order.DeliveryStandard, nil)
	require.NoError(t, err)
	return o
}

func TestNew_DerivesDistinctSellerIDs(t *testing.T) {
	o := newTestOrder(t)
	assert.Equal(t, []string{"s1", "s2"}, o.SellerIDs)
	assert.Equal(t, order.StatusProcessing, o.Status)
}

func TestNew_Validation(t *testing.T) {
	items := []order.Item{{ProductID: "p1", Quantity: 1}}

	tests := []struct {
		name      string
		make      func() (*order.Order, error)
		wantErrIs error
	}{
		{
			name: "empty_customer",
			make: func() (*order.Order, error) {
				return order.New("o1", "", "", items, 100, order.PaymentCOD, order.DeliveryPickup, nil)
			},
			wantErrIs: order.ErrEmptyCustomer,
		},
		{
			name: "empty_items",
			make: func() (*order.Order, error) {
				return order.New("o1", "c1", "", nil, 100, order.PaymentCOD, order.DeliveryPickup, nil)
			},
			wantErrIs: order.ErrEmptyItems,
		},
		{
			name: "zero_quantity",
			make: func() (*order.Order, error) {
				return order.New("o1", "c1", "", []order.Item{{ProductID: "p1"}}, 100, order.PaymentCOD, order.DeliveryPickup, nil)
			},
			wantErrIs: order.ErrInvalidQuantity,
		},
		{
			name: "negative_total",
			make: func() (*order.Order, error) {
				return order.New("o1", "c1", "", items, -1, order.PaymentCOD, order.DeliveryPickup, nil)
			},
			wantErrIs: order.ErrInvalidAmount,
		},
		{
			name: "unknown_payment_method",
			make: func() (*order.Order, error) {
				return order.New("o1", "c1", "", items, 100, "Barter", order.DeliveryPickup, nil)
			},
			wantErrIs: order.ErrInvalidPaymentMethod,
		},
		{
			name: "unknown_delivery_method",
			make: func() (*order.Order, error) {
				return order.New("o1", "c1", "", items, 100, order.PaymentCOD, "Drone", nil)
			},
			wantErrIs: order.ErrInvalidDeliveryMethod,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.make()
			assert.ErrorIs(t, err, tt.wantErrIs)
		})
	}
}

func TestOrder_FulfillmentTransitions(t *testing.T) {
	o := newTestOrder(t)

	require.NoError(t, o.Ship("912345678901", "J&T Express"))
	assert.Equal(t, order.StatusShipped, o.Status)
	assert.Equal(t, "912345678901", o.TrackingNumber)
	assert.Equal(t, "J&T Express", o.Courier)

	require.NoError(t, o.MarkDelivered())
	assert.Equal(t, order.StatusDelivered, o.Status)

	assert.ErrorIs(t, o.Ship("x", "y"), order.ErrInvalidStateTransition)
	assert.ErrorIs(t, o.RequestCancellation("too late"), order.ErrInvalidStateTransition)
	assert.ErrorIs(t, o.ApproveCancellation(), order.ErrInvalidStateTransition)
}

func TestOrder_CancellationFlow(t *testing.T) {
	o := newTestOrder(t)

	require.NoError(t, o.RequestCancellation("wrong size"))
	assert.Equal(t, order.StatusCancellationRequested, o.Status)
	assert.Equal(t, "wrong size", o.CancellationReason)

	require.NoError(t, o.ApproveCancellation())
	assert.Equal(t, order.StatusCancelled, o.Status)

	// Approving again is a no-op, not an error.
	require.NoError(t, o.ApproveCancellation())
	assert.Equal(t, order.StatusCancelled, o.Status)

	assert.ErrorIs(t, o.Ship("x", "y"), order.ErrInvalidStateTransition)
	assert.ErrorIs(t, o.MarkDelivered(), order.ErrInvalidStateTransition)
}

func TestOrder_RejectCancellationReturnsToProcessing(t *testing.T) {
	o := newTestOrder(t)

	require.NoError(t, o.RequestCancellation("changed my mind"))
	require.NoError(t, o.RejectCancellation())
	assert.Equal(t, order.StatusProcessing, o.Status)
	assert.Empty(t, o.CancellationReason)

	// The order can still be shipped afterwards.
	require.NoError(t, o.Ship("912345678901", "J&T Express"))
}

func TestOrder_RequestCancellationRequiresReason(t *testing.T) {
	o := newTestOrder(t)
	assert.ErrorIs(t, o.RequestCancellation(""), order.ErrEmptyReason)
	assert.Equal(t, order.StatusProcessing, o.Status)
}

func TestOrder_ApproveWithoutRequestFails(t *testing.T) {
	o := newTestOrder(t)
	assert.ErrorIs(t, o.ApproveCancellation(), order.ErrInvalidStateTransition)
}

func TestOrder_ProductIDs(t *testing.T) {
	o, err := order.New("o1", "c1", "", []order.Item{
		{ProductID: "p1", Quantity: 1, VariationID: "v1"},
		{ProductID: "p2", Quantity: 2},
		{ProductID: "p1", Quantity: 1, VariationID: "v2"},
	}, 100, order.PaymentCOD, order.DeliveryPickup, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"p1", "p2"}, o.ProductIDs())
	assert.Len(t, o.ItemsForProduct("p1"), 2)
	assert.Len(t, o.ItemsForProduct("p2"), 1)
	assert.Empty(t, o.ItemsForProduct("p3"))
}

package order

import (
	"errors"
	"time"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrEmptyCustomer          = errors.New("order: customer id is required")
	ErrEmptyItems             = errors.New("order: at least one item is required")
	ErrInvalidQuantity        = errors.New("order: item quantity must be greater than zero")
	ErrInvalidAmount          = errors.New("order: total amount must be zero or greater")
	ErrEmptyReason            = errors.New("order: cancellation reason is required")
	ErrInvalidPaymentMethod   = errors.New("order: unknown payment method")
	ErrInvalidDeliveryMethod  = errors.New("order: unknown delivery method")
	ErrInvalidStateTransition = errors.New("order: invalid status transition")
)

type Status string

const (
	StatusProcessing            Status = "Processing"
	StatusShipped               Status = "Shipped"
	StatusDelivered             Status = "Delivered"
	StatusCancellationRequested Status = "Cancellation Requested"
	StatusCancelled             Status = "Cancelled"
)

type PaymentMethod string

const (
	PaymentGCash        PaymentMethod = "GCash"
	PaymentPayMaya      PaymentMethod = "PayMaya"
	PaymentCOD          PaymentMethod = "COD"
	PaymentBankTransfer PaymentMethod = "BankTransfer"
)

type DeliveryMethod string

const (
	DeliveryStandard DeliveryMethod = "Standard"
	DeliveryPickup   DeliveryMethod = "Pickup"
)

// Item is a denormalized snapshot of a cart line at purchase time. Prices and
// names are frozen here and stay valid even after the product is edited or
// deleted.
type Item struct {
	ProductID     string `json:"product_id"`
	SellerID      string `json:"seller_id,omitempty"`
	Name          string `json:"name"`
	Image         string `json:"image,omitempty"`
	UnitPrice     int64  `json:"unit_price"`
	Quantity      int    `json:"quantity"`
	VariationID   string `json:"variation_id,omitempty"`
	VariationName string `json:"variation_name,omitempty"`
}

// Address is the shipping destination captured at checkout.
type Address struct {
	FullName     string `json:"full_name"`
	MobileNumber string `json:"mobile_number"`
	Street       string `json:"street"`
	Barangay     string `json:"barangay"`
	City         string `json:"city"`
	Province     string `json:"province"`
}

type Order struct {
	ID                 string         `json:"id"`
	CustomerID         string         `json:"customer_id"`
	CustomerName       string         `json:"customer_name"`
	Items              []Item         `json:"items"`
	TotalAmount        int64          `json:"total_amount"`
	Status             Status         `json:"status"`
	PaymentMethod      PaymentMethod  `json:"payment_method"`
	DeliveryMethod     DeliveryMethod `json:"delivery_method"`
	ShippingAddress    *Address       `json:"shipping_address,omitempty"`
	SellerIDs          []string       `json:"seller_ids,omitempty"`
	TrackingNumber     string         `json:"tracking_number,omitempty"`
	Courier            string         `json:"courier,omitempty"`
	CancellationReason string         `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// New builds a Processing order from a checkout snapshot. SellerIDs is
// derived once here from the items and stored immutably on the order.
func New(id, customerID, customerName string, items []Item, total int64, payment PaymentMethod, delivery DeliveryMethod, address *Address) (*Order, error) {
	if customerID == "" {
		return nil, ErrEmptyCustomer
	}
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}
	if total < 0 {
		return nil, ErrInvalidAmount
	}
	switch payment {
	case PaymentGCash, PaymentPayMaya, PaymentCOD, PaymentBankTransfer:
	default:
		return nil, ErrInvalidPaymentMethod
	}
	switch delivery {
	case DeliveryStandard, DeliveryPickup:
	default:
		return nil, ErrInvalidDeliveryMethod
	}

	now := time.Now().UTC()
	return &Order{
		ID:              id,
		CustomerID:      customerID,
		CustomerName:    customerName,
		Items:           items,
		TotalAmount:     total,
		Status:          StatusProcessing,
		PaymentMethod:   payment,
		DeliveryMethod:  delivery,
		ShippingAddress: address,
		SellerIDs:       distinctSellerIDs(items),
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Ship records tracking details and moves the order to Shipped.
func (o *Order) Ship(trackingNumber, courier string) error {
	return o.apply(func(s orderState) (orderState, error) {
		return s.OnShipped(o, trackingNumber, courier)
	})
}

// MarkDelivered moves a shipped order to its terminal Delivered status.
func (o *Order) MarkDelivered() error {
	return o.apply(func(s orderState) (orderState, error) {
		return s.OnDelivered(o)
	})
}

// RequestCancellation stores the customer's reason and parks the order until
// a seller approves or rejects. Stock is untouched until approval.
func (o *Order) RequestCancellation(reason string) error {
	if reason == "" {
		return ErrEmptyReason
	}
	return o.apply(func(s orderState) (orderState, error) {
		return s.OnCancellationRequested(o, reason)
	})
}

// ApproveCancellation moves the order to Cancelled. Approving an already
// cancelled order succeeds without effect so the operation stays idempotent.
func (o *Order) ApproveCancellation() error {
	return o.apply(func(s orderState) (orderState, error) {
		return s.OnCancellationApproved(o)
	})
}

// RejectCancellation returns a cancellation-requested order to Processing
// and clears the stored reason.
func (o *Order) RejectCancellation() error {
	return o.apply(func(s orderState) (orderState, error) {
		return s.OnCancellationRejected(o)
	})
}

// ProductIDs returns the distinct products referenced by the order items, in
// first-appearance order.
func (o *Order) ProductIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// ItemsForProduct returns the order items referencing one product.
func (o *Order) ItemsForProduct(productID string) []Item {
	var items []Item
	for _, item := range o.Items {
		if item.ProductID == productID {
			items = append(items, item)
		}
	}
	return items
}

func (o *Order) apply(fn func(s orderState) (orderState, error)) error {
	next, err := fn(stateFor(o.Status))
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch()
	return nil
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

func distinctSellerIDs(items []Item) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.SellerID == "" {
			continue
		}
		if _, ok := seen[item.SellerID]; ok {
			continue
		}
		seen[item.SellerID] = struct{}{}
		ids = append(ids, item.SellerID)
	}
	return ids
}

package ledger

// IDGenerator issues identifiers for new orders.
type IDGenerator interface {
	NewID() string
}

// OversellPolicy selects how a reservation behaves when the requested
// quantity exceeds the available stock.
type OversellPolicy int

const (
	// OversellClamp deducts what is available and floors stock at zero,
	// matching the storefront's observed behavior. The short amount is
	// reported on the result and counted in metrics.
	OversellClamp OversellPolicy = iota
	// OversellReject aborts the whole reservation with
	// catalog.ErrInsufficientStock instead of clamping.
	OversellReject
)

package market

import "errors"

// Closed error taxonomy for the market engine. Callers branch on these with
// errors.Is; everything else is an internal or storage fault.
var (
	// ErrUnauthorized rejects a caller lacking the role the transition
	// requires.
	ErrUnauthorized = errors.New("market: unauthorized")
	// ErrInsufficientFunds rejects an action whose attached payment is below
	// the required amount or in the wrong denomination.
	ErrInsufficientFunds = errors.New("market: insufficient funds sent")
	// ErrGoodsNotAvailable rejects an action against goods whose status does
	// not permit it.
	ErrGoodsNotAvailable = errors.New("market: goods not available")
	// ErrOrderNotAvailable rejects an action against an order whose status
	// does not permit it.
	ErrOrderNotAvailable = errors.New("market: order not available")
	// ErrNotFound reports a goods name or order id absent from the ledger.
	ErrNotFound = errors.New("market: not found")
	// ErrShipperNotFound reports a bid selection naming a shipper with no bid
	// on the order.
	ErrShipperNotFound = errors.New("market: shipper not found")
	// ErrNoRoute reports a fee schedule lookup for an unknown area pair.
	ErrNoRoute = errors.New("market: no shipping route")
	// ErrDuplicateListing rejects re-use of a catalog name, including names
	// whose goods already reached a terminal status.
	ErrDuplicateListing = errors.New("market: duplicate listing")
	// ErrInvalidPrice rejects a non-positive price amount.
	ErrInvalidPrice = errors.New("market: invalid price")
	// ErrDenomMismatch rejects a bid priced in a denomination other than the
	// order's.
	ErrDenomMismatch = errors.New("market: denomination mismatch")
	// ErrStorage wraps persistence failures from the underlying state.
	ErrStorage = errors.New("market: storage fault")
)

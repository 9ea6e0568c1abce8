package market

import (
	"fmt"
	"strings"

	"marketchain/core/types"
)

// GoodsStatus represents the lifecycle states of a catalog listing.
type GoodsStatus uint8

const (
	GoodsAvailable GoodsStatus = iota
	GoodsOrdered
	GoodsSold
	GoodsReturned
)

// OrderStatus represents the lifecycle states of an order from purchase
// through settlement.
type OrderStatus uint8

const (
	OrderSetup OrderStatus = iota
	OrderBidding
	OrderWaitingAddressUpload
	OrderShipping
	OrderConfirmed
	OrderDisputingBroken
	OrderDisputingUnsatisfied
	OrderDisputed
)

// Goods captures a single listed item. The name acts as the catalog primary
// key; the record persists after a terminal status for audit.
type Goods struct {
	Name   string      `json:"name"`
	Seller string      `json:"seller"`
	Price  types.Coin  `json:"price"`
	Area   string      `json:"area"`
	Status GoodsStatus `json:"status"`
}

// ShipperBid records one shipper's delivery proposal on an order. Bids are
// owned by their order and never removed, only superseded by selection.
type ShipperBid struct {
	Shipper string     `json:"shipper"`
	PubKey  string     `json:"pubKey"`
	Price   types.Coin `json:"price"`
}

// Order captures the runtime status of a purchase. The embedded goods snapshot
// and price are frozen at purchase time regardless of later catalog changes.
type Order struct {
	ID          uint64       `json:"id"`
	Buyer       string       `json:"buyer"`
	Seller      string       `json:"seller"`
	Goods       Goods        `json:"goods"`
	Price       types.Coin   `json:"price"`
	BuyerArea   string       `json:"buyerArea"`
	Bids        []ShipperBid `json:"bids"`
	ShippingFee types.Coin   `json:"shippingFee"`
	Shipper     string       `json:"shipper"`
	ShipperKey  string       `json:"shipperKey"`
	BuyerAddr   string       `json:"buyerAddr"`
	SellerAddr  string       `json:"sellerAddr"`
	Status      OrderStatus  `json:"status"`
}

// FeeRoute is one entry of the shipping fee schedule.
type FeeRoute struct {
	Origin      string     `json:"origin"`
	Destination string     `json:"destination"`
	Fee         types.Coin `json:"fee"`
}

// Clone returns a deep copy of the goods record so callers can safely mutate
// the copy without affecting the stored instance.
func (g *Goods) Clone() *Goods {
	if g == nil {
		return nil
	}
	clone := *g
	clone.Price = g.Price.Clone()
	return &clone
}

// Clone returns a deep copy of the order, bids included.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Price = o.Price.Clone()
	clone.ShippingFee = o.ShippingFee.Clone()
	if snapshot := o.Goods.Clone(); snapshot != nil {
		clone.Goods = *snapshot
	}
	if o.Bids != nil {
		clone.Bids = make([]ShipperBid, len(o.Bids))
		for i, bid := range o.Bids {
			clone.Bids[i] = bid
			clone.Bids[i].Price = bid.Price.Clone()
		}
	}
	return &clone
}

// BidBy returns the first bid submitted by the named shipper.
func (o *Order) BidBy(shipper string) (ShipperBid, bool) {
	if o == nil {
		return ShipperBid{}, false
	}
	for _, bid := range o.Bids {
		if bid.Shipper == shipper {
			return bid, true
		}
	}
	return ShipperBid{}, false
}

// Terminal reports whether no further transition is defined for the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderConfirmed || s == OrderDisputed
}

// Valid reports whether the status value is within the supported range.
func (s OrderStatus) Valid() bool {
	return s <= OrderDisputed
}

// Valid reports whether the status value is within the supported range.
func (s GoodsStatus) Valid() bool {
	return s <= GoodsReturned
}

func (s GoodsStatus) String() string {
	switch s {
	case GoodsAvailable:
		return "available"
	case GoodsOrdered:
		return "ordered"
	case GoodsSold:
		return "sold"
	case GoodsReturned:
		return "returned"
	default:
		return fmt.Sprintf("goods(%d)", uint8(s))
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderSetup:
		return "setup"
	case OrderBidding:
		return "bidding"
	case OrderWaitingAddressUpload:
		return "waiting_address_upload"
	case OrderShipping:
		return "shipping"
	case OrderConfirmed:
		return "confirmed"
	case OrderDisputingBroken:
		return "disputing_broken"
	case OrderDisputingUnsatisfied:
		return "disputing_unsatisfied"
	case OrderDisputed:
		return "disputed"
	default:
		return fmt.Sprintf("order(%d)", uint8(s))
	}
}

// SanitizeGoods validates and normalises a goods record, returning a cloned
// instance with trimmed identifiers and a non-nil price amount. The function
// does not mutate the original value.
func SanitizeGoods(g *Goods) (*Goods, error) {
	if g == nil {
		return nil, fmt.Errorf("market: nil goods")
	}
	clone := g.Clone()
	clone.Name = strings.TrimSpace(clone.Name)
	if clone.Name == "" {
		return nil, fmt.Errorf("market: goods name must not be empty")
	}
	clone.Seller = strings.TrimSpace(clone.Seller)
	if clone.Seller == "" {
		return nil, fmt.Errorf("market: goods seller must not be empty")
	}
	if clone.Price.Denom == "" {
		return nil, fmt.Errorf("market: goods price denom must not be empty")
	}
	if clone.Price.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: goods price must be positive", ErrInvalidPrice)
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("market: invalid goods status: %d", clone.Status)
	}
	return clone, nil
}

// SanitizeOrder validates an order record, returning a cloned instance with
// non-nil coin amounts. The function does not mutate the original value.
func SanitizeOrder(o *Order) (*Order, error) {
	if o == nil {
		return nil, fmt.Errorf("market: nil order")
	}
	clone := o.Clone()
	if clone.Buyer == "" {
		return nil, fmt.Errorf("market: order buyer must not be empty")
	}
	if clone.Seller == "" {
		return nil, fmt.Errorf("market: order seller must not be empty")
	}
	if clone.Price.Denom == "" {
		return nil, fmt.Errorf("market: order price denom must not be empty")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("market: invalid order status: %d", clone.Status)
	}
	// Every status at or past Shipping implies the address exchange completed.
	if clone.Status >= OrderShipping {
		if clone.BuyerAddr == "" || clone.SellerAddr == "" {
			return nil, fmt.Errorf("market: shipping order requires both encrypted addresses")
		}
	}
	return clone, nil
}

package market

import (
	"strconv"

	"marketchain/core/types"
)

const (
	EventTypeGoodsPosted     = "market.goods.posted"
	EventTypeGoodsRepriced   = "market.goods.repriced"
	EventTypeOrderCreated    = "market.order.created"
	EventTypeOrderBid        = "market.order.bid"
	EventTypeBidChosen       = "market.order.bid_chosen"
	EventTypeAddressUploaded = "market.order.address_uploaded"
	EventTypeOrderDisputed   = "market.order.disputed"
	EventTypeOrderSettled    = "market.order.settled"
	EventTypePayout          = "market.payout"
)

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// NewGoodsPostedEvent returns the canonical event payload for a new listing.
func NewGoodsPostedEvent(g *Goods) *types.Event { return newGoodsEvent(EventTypeGoodsPosted, g) }

// NewGoodsRepricedEvent returns the canonical event payload for a reprice.
func NewGoodsRepricedEvent(g *Goods) *types.Event { return newGoodsEvent(EventTypeGoodsRepriced, g) }

// NewOrderCreatedEvent returns the canonical event payload for a purchase.
func NewOrderCreatedEvent(o *Order) *types.Event { return newOrderEvent(EventTypeOrderCreated, o) }

// NewOrderBidEvent returns the event payload emitted when a shipper bids.
func NewOrderBidEvent(o *Order, bid ShipperBid) *types.Event {
	evt := newOrderEvent(EventTypeOrderBid, o)
	evt.Attributes["shipper"] = bid.Shipper
	evt.Attributes["bid"] = bid.Price.String()
	return evt
}

// NewBidChosenEvent returns the event payload emitted when the buyer selects a
// shipper.
func NewBidChosenEvent(o *Order) *types.Event {
	evt := newOrderEvent(EventTypeBidChosen, o)
	if o != nil {
		evt.Attributes["shipper"] = o.Shipper
		evt.Attributes["shippingFee"] = o.ShippingFee.String()
	}
	return evt
}

// NewAddressUploadedEvent returns the event payload emitted after an encrypted
// address lands on the order. The blob itself is never part of the event.
func NewAddressUploadedEvent(o *Order, uploader string) *types.Event {
	evt := newOrderEvent(EventTypeAddressUploaded, o)
	evt.Attributes["uploader"] = uploader
	return evt
}

// NewOrderDisputedEvent returns the event payload emitted when a dispute
// opens.
func NewOrderDisputedEvent(o *Order) *types.Event {
	return newOrderEvent(EventTypeOrderDisputed, o)
}

// NewOrderSettledEvent returns the event payload emitted on a terminal
// transition.
func NewOrderSettledEvent(o *Order, resolution Resolution) *types.Event {
	evt := newOrderEvent(EventTypeOrderSettled, o)
	evt.Attributes["resolution"] = strconv.FormatUint(uint64(resolution), 10)
	return evt
}

// NewPayoutEvent returns the event payload for a single transfer instruction.
func NewPayoutEvent(o *Order, payout Payout) *types.Event {
	evt := newOrderEvent(EventTypePayout, o)
	evt.Attributes["recipient"] = payout.Recipient
	evt.Attributes["amount"] = payout.Amount.String()
	return evt
}

func newGoodsEvent(eventType string, g *Goods) *types.Event {
	attrs := make(map[string]string)
	if g != nil {
		attrs["name"] = g.Name
		attrs["seller"] = g.Seller
		attrs["price"] = g.Price.String()
		attrs["area"] = g.Area
		attrs["status"] = g.Status.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newOrderEvent(eventType string, o *Order) *types.Event {
	attrs := make(map[string]string)
	if o != nil {
		attrs["id"] = strconv.FormatUint(o.ID, 10)
		attrs["buyer"] = o.Buyer
		attrs["seller"] = o.Seller
		attrs["goods"] = o.Goods.Name
		attrs["price"] = o.Price.String()
		attrs["status"] = o.Status.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

package market

import (
	"errors"
	"fmt"
	"strings"

	"marketchain/core/events"
	"marketchain/core/types"
)

var (
	errNilState   = errors.New("market engine: state not configured")
	errNilSettler = errors.New("market engine: settler not configured")
)

// engineState is the narrow ledger surface the engine mutates. Implemented by
// core/state.Manager in production and by map-backed mocks in tests.
type engineState interface {
	GoodsPut(*Goods) error
	GoodsGet(name string) (*Goods, bool, error)
	GoodsList() ([]*Goods, error)
	OrderPut(*Order) error
	OrderGet(id uint64) (*Order, bool, error)
	OrderList() ([]*Order, error)
	NextOrderID() (uint64, error)
	ShippingFeePut(origin, destination string, fee types.Coin) error
	ShippingFeeGet(origin, destination string) (types.Coin, bool, error)
	ShippingFeeList() ([]FeeRoute, error)
}

// Settler receives the fund-transfer instructions produced by terminal
// transitions. The engine fires and forgets; delivery is the host's problem.
type Settler interface {
	Transfer(recipient string, amount types.Coin) error
}

// BalanceSource reports the funds currently held in custody. Used only to
// answer external balance queries, never in a transition decision.
type BalanceSource interface {
	EscrowBalances() ([]types.Coin, error)
}

// NoopSettler discards all payout instructions.
type NoopSettler struct{}

// Transfer implements the Settler interface.
func (NoopSettler) Transfer(string, types.Coin) error { return nil }

// Engine owns the order lifecycle state machine and the goods catalog. Every
// exported method is one serialized read-check-write against the ledger; a
// returned error means no state was mutated.
type Engine struct {
	state    engineState
	settler  Settler
	balances BalanceSource
	emitter  events.Emitter
}

// NewEngine creates a market engine with a no-op emitter and settler. Callers
// override them via SetEmitter and SetSettler.
func NewEngine() *Engine {
	return &Engine{
		settler: NoopSettler{},
		emitter: events.NoopEmitter{},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetSettler configures the payout sink. Passing nil resets to a no-op.
func (e *Engine) SetSettler(settler Settler) {
	if settler == nil {
		e.settler = NoopSettler{}
		return
	}
	e.settler = settler
}

// SetBalanceSource configures the custody balance reporter.
func (e *Engine) SetBalanceSource(src BalanceSource) { e.balances = src }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) loadGoods(name string) (*Goods, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	goods, ok, err := e.state.GoodsGet(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: goods %q", ErrNotFound, name)
	}
	return goods, nil
}

func (e *Engine) loadOrder(id uint64) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	order, ok, err := e.state.OrderGet(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	return order, nil
}

func (e *Engine) storeGoods(goods *Goods) error {
	if err := e.state.GoodsPut(goods); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (e *Engine) storeOrder(order *Order) error {
	if err := e.state.OrderPut(order); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// assertSentSufficient checks that the attached funds cover the required coin
// in the required denomination.
func assertSentSufficient(sent []types.Coin, required types.Coin) error {
	if required.IsZero() {
		return nil
	}
	for _, coin := range sent {
		if coin.Covers(required) {
			return nil
		}
	}
	return fmt.Errorf("%w: need %s", ErrInsufficientFunds, required)
}

// Post lists a new goods record with status Available. Names are catalog
// primary keys; re-use is rejected even after a terminal status.
func (e *Engine) Post(seller, name string, price types.Coin, area string) (*Goods, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	trimmed := strings.TrimSpace(name)
	_, ok, err := e.state.GoodsGet(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateListing, trimmed)
	}
	goods, err := SanitizeGoods(&Goods{
		Name:   trimmed,
		Seller: seller,
		Price:  price,
		Area:   strings.TrimSpace(area),
		Status: GoodsAvailable,
	})
	if err != nil {
		return nil, err
	}
	if err := e.storeGoods(goods); err != nil {
		return nil, err
	}
	e.emit(NewGoodsPostedEvent(goods))
	return goods.Clone(), nil
}

// Reset changes the price amount of an Available listing. Only the seller may
// reprice; the denomination is fixed at listing time.
func (e *Engine) Reset(caller, name string, amount types.Coin) (*Goods, error) {
	goods, err := e.loadGoods(name)
	if err != nil {
		return nil, err
	}
	if goods.Status != GoodsAvailable {
		return nil, fmt.Errorf("%w: cannot reprice in status %s", ErrGoodsNotAvailable, goods.Status)
	}
	if goods.Seller != caller {
		return nil, fmt.Errorf("%w: only the seller may reprice", ErrUnauthorized)
	}
	if amount.Amount == nil || amount.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidPrice)
	}
	goods.Price = types.NewCoin(goods.Price.Denom, amount.Amount)
	if err := e.storeGoods(goods); err != nil {
		return nil, err
	}
	e.emit(NewGoodsRepricedEvent(goods))
	return goods.Clone(), nil
}

// Buy reserves an Available goods record and opens a new order in status
// Setup. The purchase price is frozen into the order snapshot; later catalog
// changes never affect it.
func (e *Engine) Buy(buyer string, funds []types.Coin, name, buyerArea string) (*Order, error) {
	goods, err := e.loadGoods(name)
	if err != nil {
		return nil, err
	}
	if goods.Status != GoodsAvailable {
		return nil, fmt.Errorf("%w: cannot buy in status %s", ErrGoodsNotAvailable, goods.Status)
	}
	if err := assertSentSufficient(funds, goods.Price); err != nil {
		return nil, err
	}
	// Validate before touching the id counter; a rejected purchase must not
	// burn an id.
	buyer = strings.TrimSpace(buyer)
	if buyer == "" {
		return nil, fmt.Errorf("market: order buyer must not be empty")
	}
	id, err := e.state.NextOrderID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	goods.Status = GoodsOrdered
	order := &Order{
		ID:        id,
		Buyer:     buyer,
		Seller:    goods.Seller,
		Goods:     *goods.Clone(),
		Price:     goods.Price.Clone(),
		BuyerArea: strings.TrimSpace(buyerArea),
		Status:    OrderSetup,
	}
	sanitized, err := SanitizeOrder(order)
	if err != nil {
		return nil, err
	}
	if err := e.storeGoods(goods); err != nil {
		return nil, err
	}
	if err := e.storeOrder(sanitized); err != nil {
		return nil, err
	}
	e.emit(NewOrderCreatedEvent(sanitized))
	return sanitized.Clone(), nil
}

// TakeOrder appends a shipper bid to an order in Setup or Bidding. The shipper
// must attach a bond of at least the order price. A zero bid price adopts the
// schedule quote for the order's route.
func (e *Engine) TakeOrder(shipper string, funds []types.Coin, id uint64, pubKey string, price types.Coin) (*Order, error) {
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if order.Status != OrderSetup && order.Status != OrderBidding {
		return nil, fmt.Errorf("%w: cannot bid in status %s", ErrOrderNotAvailable, order.Status)
	}
	if err := assertSentSufficient(funds, order.Price); err != nil {
		return nil, err
	}
	bidPrice := price.Clone()
	if bidPrice.IsZero() {
		bidPrice, err = e.Quote(order.Goods.Area, order.BuyerArea)
		if err != nil {
			return nil, err
		}
	}
	if bidPrice.Denom != order.Price.Denom {
		return nil, fmt.Errorf("%w: bid %s, order %s", ErrDenomMismatch, bidPrice.Denom, order.Price.Denom)
	}
	order.Bids = append(order.Bids, ShipperBid{
		Shipper: strings.TrimSpace(shipper),
		PubKey:  pubKey,
		Price:   bidPrice,
	})
	order.Status = OrderBidding
	if err := e.storeOrder(order); err != nil {
		return nil, err
	}
	e.emit(NewOrderBidEvent(order, order.Bids[len(order.Bids)-1]))
	return order.Clone(), nil
}

// ChooseBid lets the buyer select one of the submitted bids, adopting the
// shipper's identity, public key and proposed fee.
func (e *Engine) ChooseBid(caller string, id uint64, shipper string) (*Order, error) {
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if order.Status != OrderBidding {
		return nil, fmt.Errorf("%w: cannot choose bid in status %s", ErrOrderNotAvailable, order.Status)
	}
	if caller != order.Buyer {
		return nil, fmt.Errorf("%w: only the buyer may choose a bid", ErrUnauthorized)
	}
	bid, ok := order.BidBy(strings.TrimSpace(shipper))
	if !ok {
		return nil, fmt.Errorf("%w: %q has no bid on order %d", ErrShipperNotFound, shipper, id)
	}
	order.Shipper = bid.Shipper
	order.ShipperKey = bid.PubKey
	order.ShippingFee = bid.Price.Clone()
	order.Status = OrderWaitingAddressUpload
	if err := e.storeOrder(order); err != nil {
		return nil, err
	}
	e.emit(NewBidChosenEvent(order))
	return order.Clone(), nil
}

// UploadAddress stores the caller's encrypted address blob. The order advances
// to Shipping once both the buyer and seller fields are non-empty. Blobs are
// opaque; no cryptographic validation happens here.
func (e *Engine) UploadAddress(caller string, id uint64, addressEnc string) (*Order, error) {
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if order.Status != OrderWaitingAddressUpload {
		return nil, fmt.Errorf("%w: cannot upload address in status %s", ErrOrderNotAvailable, order.Status)
	}
	if strings.TrimSpace(addressEnc) == "" {
		return nil, fmt.Errorf("market: encrypted address must not be empty")
	}
	switch caller {
	case order.Buyer:
		order.BuyerAddr = addressEnc
	case order.Seller:
		order.SellerAddr = addressEnc
	default:
		return nil, fmt.Errorf("%w: only the buyer or seller may upload an address", ErrUnauthorized)
	}
	if order.BuyerAddr != "" && order.SellerAddr != "" {
		order.Status = OrderShipping
	}
	if err := e.storeOrder(order); err != nil {
		return nil, err
	}
	e.emit(NewAddressUploadedEvent(order, caller))
	return order.Clone(), nil
}

// Confirm settles a Shipping order in favour of the seller and shipper and
// marks the goods as sold. Only the buyer may confirm.
func (e *Engine) Confirm(caller string, id uint64) (*Order, error) {
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if order.Status != OrderShipping {
		return nil, fmt.Errorf("%w: cannot confirm in status %s", ErrOrderNotAvailable, order.Status)
	}
	if caller != order.Buyer {
		return nil, fmt.Errorf("%w: only the buyer may confirm", ErrUnauthorized)
	}
	return e.settle(order, OrderConfirmed, GoodsSold, ResolutionConfirm)
}

// DisputeBroken flags a Shipping order as disputed over broken goods. Only the
// buyer may open a dispute; no funds move until the seller confirms it.
func (e *Engine) DisputeBroken(caller string, id uint64) (*Order, error) {
	return e.dispute(caller, id, OrderDisputingBroken)
}

// DisputeUnsatisfied flags a Shipping order as disputed over dissatisfaction
// unrelated to the shipper.
func (e *Engine) DisputeUnsatisfied(caller string, id uint64) (*Order, error) {
	return e.dispute(caller, id, OrderDisputingUnsatisfied)
}

func (e *Engine) dispute(caller string, id uint64, status OrderStatus) (*Order, error) {
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if order.Status != OrderShipping {
		return nil, fmt.Errorf("%w: cannot dispute in status %s", ErrOrderNotAvailable, order.Status)
	}
	if caller != order.Buyer {
		return nil, fmt.Errorf("%w: only the buyer may dispute", ErrUnauthorized)
	}
	order.Status = status
	if err := e.storeOrder(order); err != nil {
		return nil, err
	}
	e.emit(NewOrderDisputedEvent(order))
	return order.Clone(), nil
}

// DisputeConfirm lets the seller acknowledge an open dispute, settling the
// escrow per the dispute branch and returning the goods to the catalog as
// Returned.
func (e *Engine) DisputeConfirm(caller string, id uint64) (*Order, error) {
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	var resolution Resolution
	switch order.Status {
	case OrderDisputingBroken:
		resolution = ResolutionBroken
	case OrderDisputingUnsatisfied:
		resolution = ResolutionUnsatisfied
	default:
		return nil, fmt.Errorf("%w: cannot confirm dispute in status %s", ErrOrderNotAvailable, order.Status)
	}
	if caller != order.Seller {
		return nil, fmt.Errorf("%w: only the seller may confirm a dispute", ErrUnauthorized)
	}
	return e.settle(order, OrderDisputed, GoodsReturned, resolution)
}

// settle applies a terminal transition: compute payouts, finalize the goods
// record, persist the order, then hand the transfer instructions to the
// settler and emit events.
func (e *Engine) settle(order *Order, orderStatus OrderStatus, goodsStatus GoodsStatus, resolution Resolution) (*Order, error) {
	if e.settler == nil {
		return nil, errNilSettler
	}
	payouts, err := SettlementPayouts(order, resolution)
	if err != nil {
		return nil, err
	}
	goods, ok, err := e.state.GoodsGet(order.Goods.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !ok {
		// Internal-consistency fault: the catalog record vanished between
		// purchase and settlement.
		return nil, fmt.Errorf("%w: goods %q missing at settlement", ErrNotFound, order.Goods.Name)
	}
	goods.Status = goodsStatus
	order.Status = orderStatus
	if err := e.storeGoods(goods); err != nil {
		return nil, err
	}
	if err := e.storeOrder(order); err != nil {
		return nil, err
	}
	for _, payout := range payouts {
		// The terminal state is committed at this point; delivery is the
		// host's problem and a failed transfer must not roll it back.
		_ = e.settler.Transfer(payout.Recipient, payout.Amount)
		e.emit(NewPayoutEvent(order, payout))
	}
	e.emit(NewOrderSettledEvent(order, resolution))
	return order.Clone(), nil
}

// Goods returns all catalog records in key order.
func (e *Engine) Goods() ([]*Goods, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	list, err := e.state.GoodsList()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return list, nil
}

// Orders returns all orders in id order.
func (e *Engine) Orders() ([]*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	list, err := e.state.OrderList()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return list, nil
}

// OrderDetail returns one order by id.
func (e *Engine) OrderDetail(id uint64) (*Order, error) {
	return e.loadOrder(id)
}

// Addresses returns the two encrypted address blobs recorded on an order.
func (e *Engine) Addresses(id uint64) (buyer, seller string, err error) {
	order, err := e.loadOrder(id)
	if err != nil {
		return "", "", err
	}
	return order.BuyerAddr, order.SellerAddr, nil
}

// EscrowBalance reports the funds currently held in custody. Purely
// informational; no transition consults it.
func (e *Engine) EscrowBalance() ([]types.Coin, error) {
	if e == nil || e.balances == nil {
		return []types.Coin{}, nil
	}
	balances, err := e.balances.EscrowBalances()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return balances, nil
}

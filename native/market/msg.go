package market

import (
	"fmt"

	"marketchain/core/types"
)

// Msg is the closed set of externally observable actions. Each variant carries
// exactly the payload its transition needs; Execute dispatches through an
// exhaustive switch so a new variant forces a review of every call site.
type Msg interface {
	isMsg()
}

type PostMsg struct {
	Name  string     `json:"name"`
	Price types.Coin `json:"price"`
	Area  string     `json:"area"`
}

type BuyMsg struct {
	Name string `json:"name"`
	Area string `json:"area"`
}

type ResetMsg struct {
	Name  string     `json:"name"`
	Price types.Coin `json:"price"`
}

type TakeOrderMsg struct {
	ID     uint64     `json:"id"`
	PubKey string     `json:"pubKey"`
	Price  types.Coin `json:"price"`
}

type ChooseBidMsg struct {
	ID      uint64 `json:"id"`
	Shipper string `json:"shipper"`
}

type UploadAddressMsg struct {
	ID         uint64 `json:"id"`
	AddressEnc string `json:"addressEnc"`
}

type ConfirmMsg struct {
	ID uint64 `json:"id"`
}

type DisputeBrokenMsg struct {
	ID uint64 `json:"id"`
}

type DisputeUnsatisfiedMsg struct {
	ID uint64 `json:"id"`
}

type DisputeConfirmMsg struct {
	ID uint64 `json:"id"`
}

func (PostMsg) isMsg()               {}
func (BuyMsg) isMsg()                {}
func (ResetMsg) isMsg()              {}
func (TakeOrderMsg) isMsg()          {}
func (ChooseBidMsg) isMsg()          {}
func (UploadAddressMsg) isMsg()      {}
func (ConfirmMsg) isMsg()            {}
func (DisputeBrokenMsg) isMsg()      {}
func (DisputeUnsatisfiedMsg) isMsg() {}
func (DisputeConfirmMsg) isMsg()     {}

// ExecResult reports the record an action created or mutated.
type ExecResult struct {
	Goods *Goods `json:"goods,omitempty"`
	Order *Order `json:"order,omitempty"`
}

// Execute applies one action on behalf of caller with the host-attached funds.
// Either the full state mutation applies or none does.
func (e *Engine) Execute(caller string, funds []types.Coin, msg Msg) (*ExecResult, error) {
	switch m := msg.(type) {
	case PostMsg:
		goods, err := e.Post(caller, m.Name, m.Price, m.Area)
		if err != nil {
			return nil, err
		}
		return &ExecResult{Goods: goods}, nil
	case BuyMsg:
		order, err := e.Buy(caller, funds, m.Name, m.Area)
		if err != nil {
			return nil, err
		}
		return &ExecResult{Order: order}, nil
	case ResetMsg:
		goods, err := e.Reset(caller, m.Name, m.Price)
		if err != nil {
			return nil, err
		}
		return &ExecResult{Goods: goods}, nil
	case TakeOrderMsg:
		order, err := e.TakeOrder(caller, funds, m.ID, m.PubKey, m.Price)
		if err != nil {
			return nil, err
		}
		return &ExecResult{Order: order}, nil
	case ChooseBidMsg:
		order, err := e.ChooseBid(caller, m.ID, m.Shipper)
		if err != nil {
			return nil, err
		}
		return &ExecResult{Order: order}, nil
	case UploadAddressMsg:
		order, err := e.UploadAddress(caller, m.ID, m.AddressEnc)
		if err != nil {
			return nil, err
		}
		return &ExecResult{Order: order}, nil
	case ConfirmMsg:
		order, err := e.Confirm(caller, m.ID)
		if err != nil {
			return nil, err
		}
		return &ExecResult{Order: order}, nil
	case DisputeBrokenMsg:
		order, err := e.DisputeBroken(caller, m.ID)
		if err != nil {
			return nil, err
		}
		return &ExecResult{Order: order}, nil
	case DisputeUnsatisfiedMsg:
		order, err := e.DisputeUnsatisfied(caller, m.ID)
		if err != nil {
			return nil, err
		}
		return &ExecResult{Order: order}, nil
	case DisputeConfirmMsg:
		order, err := e.DisputeConfirm(caller, m.ID)
		if err != nil {
			return nil, err
		}
		return &ExecResult{Order: order}, nil
	default:
		// The Msg set is closed; an unknown variant is a programming error.
		panic(fmt.Sprintf("market: unhandled message type %T", msg))
	}
}

// Query is the closed set of externally observable reads.
type Query interface {
	isQuery()
}

type GoodsQuery struct{}

type OrdersQuery struct{}

type ShippingFeesQuery struct{}

type OrderDetailQuery struct {
	ID uint64 `json:"id"`
}

type AddressesQuery struct {
	ID uint64 `json:"id"`
}

type BalanceQuery struct{}

func (GoodsQuery) isQuery()        {}
func (OrdersQuery) isQuery()       {}
func (ShippingFeesQuery) isQuery() {}
func (OrderDetailQuery) isQuery()  {}
func (AddressesQuery) isQuery()    {}
func (BalanceQuery) isQuery()      {}

// GoodsResponse answers GoodsQuery.
type GoodsResponse struct {
	Goods []*Goods `json:"goods"`
}

// OrdersResponse answers OrdersQuery.
type OrdersResponse struct {
	Orders []*Order `json:"orders"`
}

// ShippingFeesResponse answers ShippingFeesQuery.
type ShippingFeesResponse struct {
	Routes []FeeRoute `json:"routes"`
}

// OrderDetailResponse answers OrderDetailQuery.
type OrderDetailResponse struct {
	Order *Order `json:"order"`
}

// AddressesResponse answers AddressesQuery with the two opaque blobs.
type AddressesResponse struct {
	Buyer  string `json:"buyer"`
	Seller string `json:"seller"`
}

// BalanceResponse answers BalanceQuery with the custody balances.
type BalanceResponse struct {
	Balances []types.Coin `json:"balances"`
}

// Resolve answers one query against the current ledger state.
func (e *Engine) Resolve(query Query) (interface{}, error) {
	switch q := query.(type) {
	case GoodsQuery:
		goods, err := e.Goods()
		if err != nil {
			return nil, err
		}
		return GoodsResponse{Goods: goods}, nil
	case OrdersQuery:
		orders, err := e.Orders()
		if err != nil {
			return nil, err
		}
		return OrdersResponse{Orders: orders}, nil
	case ShippingFeesQuery:
		routes, err := e.ShippingFees()
		if err != nil {
			return nil, err
		}
		return ShippingFeesResponse{Routes: routes}, nil
	case OrderDetailQuery:
		order, err := e.OrderDetail(q.ID)
		if err != nil {
			return nil, err
		}
		return OrderDetailResponse{Order: order}, nil
	case AddressesQuery:
		buyer, seller, err := e.Addresses(q.ID)
		if err != nil {
			return nil, err
		}
		return AddressesResponse{Buyer: buyer, Seller: seller}, nil
	case BalanceQuery:
		balances, err := e.EscrowBalance()
		if err != nil {
			return nil, err
		}
		return BalanceResponse{Balances: balances}, nil
	default:
		panic(fmt.Sprintf("market: unhandled query type %T", query))
	}
}

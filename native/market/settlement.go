package market

import (
	"fmt"
	"math/big"

	"marketchain/core/types"
)

// Resolution identifies the terminal transition being settled.
type Resolution uint8

const (
	// ResolutionConfirm settles a buyer confirmation of delivery.
	ResolutionConfirm Resolution = iota
	// ResolutionBroken settles a seller-confirmed dispute over goods that
	// arrived broken.
	ResolutionBroken
	// ResolutionUnsatisfied settles a seller-confirmed dispute where the buyer
	// claims dissatisfaction unrelated to the shipper.
	ResolutionUnsatisfied
)

// Payout is a single fund-transfer instruction emitted by a terminal
// transition. The engine never observes whether the transfer succeeds.
type Payout struct {
	Recipient string     `json:"recipient"`
	Amount    types.Coin `json:"amount"`
}

// SettlementPayouts computes the exact fund transfers for a terminal
// transition. The formulas are deliberately asymmetric between the two dispute
// branches and are not guaranteed to balance against the escrow actually
// collected; see TestSettlementBondImbalance before changing any of them.
//
//	Confirm:      seller <- price,               shipper <- fee
//	Broken:       buyer  <- price + 2*fee,       seller  <- price
//	Unsatisfied:  shipper <- 2*fee,              buyer   <- price
func SettlementPayouts(order *Order, resolution Resolution) ([]Payout, error) {
	if order == nil {
		return nil, fmt.Errorf("market: nil order")
	}
	price := order.Price.Clone()
	fee := order.ShippingFee.Clone()
	if price.Amount == nil || fee.Amount == nil {
		return nil, fmt.Errorf("market: order %d has unpriced settlement", order.ID)
	}
	doubleFee := types.NewCoin(fee.Denom, new(big.Int).Lsh(fee.Amount, 1))
	switch resolution {
	case ResolutionConfirm:
		return []Payout{
			{Recipient: order.Seller, Amount: price},
			{Recipient: order.Shipper, Amount: fee},
		}, nil
	case ResolutionBroken:
		refund := types.NewCoin(price.Denom, new(big.Int).Add(price.Amount, doubleFee.Amount))
		return []Payout{
			{Recipient: order.Buyer, Amount: refund},
			{Recipient: order.Seller, Amount: price},
		}, nil
	case ResolutionUnsatisfied:
		return []Payout{
			{Recipient: order.Shipper, Amount: doubleFee},
			{Recipient: order.Buyer, Amount: price},
		}, nil
	default:
		return nil, fmt.Errorf("market: unknown resolution %d", resolution)
	}
}

package market

import (
	"math/big"
	"testing"

	"marketchain/core/types"
)

func TestGoodsCloneDoesNotAlias(t *testing.T) {
	original := &Goods{
		Name:   "laptop",
		Seller: "seller1",
		Price:  types.NewCoin("LUNA", big.NewInt(200)),
		Area:   "montreal",
	}
	clone := original.Clone()
	clone.Price.Amount.SetInt64(999)
	clone.Status = GoodsSold

	if original.Price.Amount.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("original price mutated: %s", original.Price.Amount)
	}
	if original.Status != GoodsAvailable {
		t.Fatalf("original status mutated: %v", original.Status)
	}
}

func TestOrderCloneDoesNotAlias(t *testing.T) {
	original := &Order{
		ID:     3,
		Buyer:  "buyer1",
		Seller: "seller1",
		Goods: Goods{
			Name:   "laptop",
			Seller: "seller1",
			Price:  types.NewCoin("LUNA", big.NewInt(200)),
		},
		Price: types.NewCoin("LUNA", big.NewInt(200)),
		Bids: []ShipperBid{
			{Shipper: "shipper1", PubKey: "k1", Price: types.NewCoin("LUNA", big.NewInt(5))},
		},
		ShippingFee: types.NewCoin("LUNA", big.NewInt(5)),
	}
	clone := original.Clone()
	clone.Bids[0].Price.Amount.SetInt64(999)
	clone.Bids = append(clone.Bids, ShipperBid{Shipper: "shipper2"})
	clone.Goods.Price.Amount.SetInt64(1)
	clone.ShippingFee.Amount.SetInt64(77)

	if got := original.Bids[0].Price.Amount; got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("original bid price mutated: %s", got)
	}
	if len(original.Bids) != 1 {
		t.Fatalf("original bid slice mutated: %d entries", len(original.Bids))
	}
	if got := original.Goods.Price.Amount; got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("original goods snapshot mutated: %s", got)
	}
	if got := original.ShippingFee.Amount; got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("original shipping fee mutated: %s", got)
	}
}

func TestBidBy(t *testing.T) {
	order := &Order{Bids: []ShipperBid{
		{Shipper: "shipper1", PubKey: "k1"},
		{Shipper: "shipper2", PubKey: "k2"},
	}}
	bid, ok := order.BidBy("shipper2")
	if !ok || bid.PubKey != "k2" {
		t.Fatalf("BidBy(shipper2) = %+v, %v", bid, ok)
	}
	if _, ok := order.BidBy("unknown"); ok {
		t.Fatalf("BidBy(unknown) reported a bid")
	}
}

func TestSanitizeGoods(t *testing.T) {
	goods := &Goods{
		Name:   "  laptop  ",
		Seller: " seller1 ",
		Price:  types.NewCoin("LUNA", big.NewInt(200)),
	}
	clean, err := SanitizeGoods(goods)
	if err != nil {
		t.Fatalf("SanitizeGoods: %v", err)
	}
	if clean.Name != "laptop" || clean.Seller != "seller1" {
		t.Fatalf("identifiers not trimmed: %+v", clean)
	}
	if goods.Name != "  laptop  " {
		t.Fatalf("input mutated: %q", goods.Name)
	}

	invalid := []*Goods{
		nil,
		{Seller: "seller1", Price: types.NewCoin("LUNA", big.NewInt(1))},
		{Name: "laptop", Price: types.NewCoin("LUNA", big.NewInt(1))},
		{Name: "laptop", Seller: "seller1", Price: types.NewCoin("", big.NewInt(1))},
		{Name: "laptop", Seller: "seller1", Price: types.NewCoin("LUNA", big.NewInt(0))},
		{Name: "laptop", Seller: "seller1", Price: types.NewCoin("LUNA", big.NewInt(1)), Status: GoodsStatus(9)},
	}
	for i, g := range invalid {
		if _, err := SanitizeGoods(g); err == nil {
			t.Fatalf("case %d: expected error for %+v", i, g)
		}
	}
}

func TestSanitizeOrderRequiresAddressesFromShipping(t *testing.T) {
	base := func() *Order {
		return &Order{
			Buyer:  "buyer1",
			Seller: "seller1",
			Goods:  Goods{Name: "laptop", Seller: "seller1", Price: types.NewCoin("LUNA", big.NewInt(200))},
			Price:  types.NewCoin("LUNA", big.NewInt(200)),
			Status: OrderBidding,
		}
	}
	if _, err := SanitizeOrder(base()); err != nil {
		t.Fatalf("bidding order rejected: %v", err)
	}

	for _, status := range []OrderStatus{OrderShipping, OrderConfirmed, OrderDisputingBroken, OrderDisputingUnsatisfied, OrderDisputed} {
		order := base()
		order.Status = status
		if _, err := SanitizeOrder(order); err == nil {
			t.Fatalf("status %v accepted without addresses", status)
		}
		order.BuyerAddr = "enc:b"
		order.SellerAddr = "enc:s"
		if _, err := SanitizeOrder(order); err != nil {
			t.Fatalf("status %v rejected with addresses: %v", status, err)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderSetup:                false,
		OrderBidding:              false,
		OrderWaitingAddressUpload: false,
		OrderShipping:             false,
		OrderConfirmed:            true,
		OrderDisputingBroken:      false,
		OrderDisputingUnsatisfied: false,
		OrderDisputed:             true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Fatalf("%v.Terminal() = %v, want %v", status, got, want)
		}
	}
}

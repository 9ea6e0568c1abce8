package types

import (
	"fmt"
	"math/big"
	"strings"
)

// Coin pairs an amount with its denomination. Amounts are arbitrary-precision
// and must be cloned at every ownership boundary so stored records never alias
// caller-held values.
type Coin struct {
	Denom  string   `json:"denom"`
	Amount *big.Int `json:"amount"`
}

// NewCoin builds a coin with a defensive copy of the amount.
func NewCoin(denom string, amount *big.Int) Coin {
	c := Coin{Denom: strings.TrimSpace(denom), Amount: big.NewInt(0)}
	if amount != nil {
		c.Amount = new(big.Int).Set(amount)
	}
	return c
}

// Clone returns a deep copy of the coin.
func (c Coin) Clone() Coin {
	clone := Coin{Denom: c.Denom, Amount: big.NewInt(0)}
	if c.Amount != nil {
		clone.Amount = new(big.Int).Set(c.Amount)
	}
	return clone
}

// IsZero reports whether the coin carries no value.
func (c Coin) IsZero() bool {
	return c.Amount == nil || c.Amount.Sign() == 0
}

// Covers reports whether the coin matches the required denomination and holds
// at least the required amount.
func (c Coin) Covers(required Coin) bool {
	if required.IsZero() {
		return true
	}
	if c.Denom != required.Denom || c.Amount == nil {
		return false
	}
	return c.Amount.Cmp(required.Amount) >= 0
}

func (c Coin) String() string {
	amount := "0"
	if c.Amount != nil {
		amount = c.Amount.String()
	}
	return fmt.Sprintf("%s%s", amount, c.Denom)
}

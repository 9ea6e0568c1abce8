package types

import "math/big"

// Account tracks the coin balances held by a single market participant. The
// balances map is keyed by denomination; absent entries read as zero.
type Account struct {
	Balances map[string]*big.Int `json:"balances"`
}

// NewAccount returns an account with an initialised, empty balance table.
func NewAccount() *Account {
	return &Account{Balances: make(map[string]*big.Int)}
}

// Balance returns the balance for the given denomination, zero when absent.
// The returned value is a copy.
func (a *Account) Balance(denom string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	amount, ok := a.Balances[denom]
	if !ok || amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(amount)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	clone := NewAccount()
	if a == nil || a.Balances == nil {
		return clone
	}
	for denom, amount := range a.Balances {
		if amount == nil {
			clone.Balances[denom] = big.NewInt(0)
			continue
		}
		clone.Balances[denom] = new(big.Int).Set(amount)
	}
	return clone
}

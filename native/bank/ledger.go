package bank

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"

	"marketchain/core/types"
)

// ModuleAccount is the identity the market contract holds custody under.
const ModuleAccount = "market-escrow"

// Ledger is an in-process stand-in for the host chain's bank module. It tracks
// per-account coin balances, receives the deposits the host attaches to calls
// and applies the transfer instructions the market engine emits at settlement.
//
// The escrow account is allowed to go negative: the settlement formulas are
// reproduced from the source design and do not balance against collected
// deposits (see the bond imbalance test). Regular accounts cannot overdraw.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*types.Account
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[string]*types.Account)}
}

func (l *Ledger) account(addr string) *types.Account {
	acc, ok := l.accounts[addr]
	if !ok {
		acc = types.NewAccount()
		l.accounts[addr] = acc
	}
	return acc
}

func credit(acc *types.Account, coin types.Coin) {
	if coin.IsZero() {
		return
	}
	current, ok := acc.Balances[coin.Denom]
	if !ok || current == nil {
		current = big.NewInt(0)
	}
	acc.Balances[coin.Denom] = new(big.Int).Add(current, coin.Amount)
}

func debit(acc *types.Account, coin types.Coin) {
	if coin.IsZero() {
		return
	}
	current, ok := acc.Balances[coin.Denom]
	if !ok || current == nil {
		current = big.NewInt(0)
	}
	acc.Balances[coin.Denom] = new(big.Int).Sub(current, coin.Amount)
}

// Mint credits an account out of thin air. Test and bootstrap helper.
func (l *Ledger) Mint(addr string, coin types.Coin) {
	l.mu.Lock()
	defer l.mu.Unlock()
	credit(l.account(addr), coin)
}

// Deposit moves attached funds from the caller into escrow custody. The host
// guarantees attachment, so an overdrawing caller is a host fault.
func (l *Ledger) Deposit(caller string, funds []types.Coin) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	from := l.account(caller)
	for _, coin := range funds {
		if coin.IsZero() {
			continue
		}
		if coin.Amount.Sign() < 0 {
			return fmt.Errorf("bank: negative deposit from %s", caller)
		}
		if from.Balance(coin.Denom).Cmp(coin.Amount) < 0 {
			return fmt.Errorf("bank: %s cannot attach %s", caller, coin)
		}
	}
	escrow := l.account(ModuleAccount)
	for _, coin := range funds {
		debit(from, coin)
		credit(escrow, coin)
	}
	return nil
}

// Refund returns previously attached funds from escrow custody to the caller.
// Used when an action is rejected after its deposit landed.
func (l *Ledger) Refund(caller string, funds []types.Coin) {
	l.mu.Lock()
	defer l.mu.Unlock()
	escrow := l.account(ModuleAccount)
	to := l.account(caller)
	for _, coin := range funds {
		debit(escrow, coin)
		credit(to, coin)
	}
}

// Transfer pays out of escrow custody to a recipient. Implements the market
// engine's Settler interface.
func (l *Ledger) Transfer(recipient string, amount types.Coin) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return fmt.Errorf("bank: payout recipient must not be empty")
	}
	if amount.Amount != nil && amount.Amount.Sign() < 0 {
		return fmt.Errorf("bank: negative payout to %s", recipient)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	debit(l.account(ModuleAccount), amount)
	credit(l.account(recipient), amount)
	return nil
}

// Balance reports one account's balance in the given denomination.
func (l *Ledger) Balance(addr, denom string) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[addr]
	if !ok {
		return big.NewInt(0)
	}
	return acc.Balance(denom)
}

// EscrowBalances reports every denomination held in custody, sorted by denom.
// Implements the market engine's BalanceSource interface.
func (l *Ledger) EscrowBalances() ([]types.Coin, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[ModuleAccount]
	if !ok {
		return []types.Coin{}, nil
	}
	denoms := make([]string, 0, len(acc.Balances))
	for denom := range acc.Balances {
		denoms = append(denoms, denom)
	}
	sort.Strings(denoms)
	balances := make([]types.Coin, 0, len(denoms))
	for _, denom := range denoms {
		balances = append(balances, types.NewCoin(denom, acc.Balances[denom]))
	}
	return balances, nil
}

package market

import (
	"fmt"
	"math/big"
	"strings"

	"marketchain/core/types"
)

// NormalizeArea canonicalises area identifiers for consistent schedule
// lookups.
func NormalizeArea(area string) string {
	return strings.ToLower(strings.TrimSpace(area))
}

// Quote looks up the delivery fee for an (origin, destination) area pair.
// The schedule is a placeholder pricing oracle: populated once at bootstrap,
// read-only thereafter.
func (e *Engine) Quote(origin, destination string) (types.Coin, error) {
	if e == nil || e.state == nil {
		return types.Coin{}, errNilState
	}
	fee, ok, err := e.state.ShippingFeeGet(NormalizeArea(origin), NormalizeArea(destination))
	if err != nil {
		return types.Coin{}, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !ok {
		return types.Coin{}, fmt.Errorf("%w: %s -> %s", ErrNoRoute, origin, destination)
	}
	return fee, nil
}

// ShippingFees returns the full schedule ordered by route key.
func (e *Engine) ShippingFees() ([]FeeRoute, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	routes, err := e.state.ShippingFeeList()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return routes, nil
}

// BootstrapFees populates the schedule with every ordered pair among the known
// areas. Same-area routes get the local fee, cross-area routes the remote fee.
// Existing entries are left untouched so restarts do not clobber the schedule.
func (e *Engine) BootstrapFees(areas []string, denom string, local, remote *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if len(areas) == 0 {
		return fmt.Errorf("market: fee bootstrap requires at least one area")
	}
	if local == nil || local.Sign() <= 0 || remote == nil || remote.Sign() <= 0 {
		return fmt.Errorf("market: fee bootstrap requires positive fees")
	}
	if remote.Cmp(local) < 0 {
		return fmt.Errorf("market: cross-area fee below same-area fee")
	}
	for _, origin := range areas {
		for _, destination := range areas {
			from, to := NormalizeArea(origin), NormalizeArea(destination)
			if from == "" || to == "" {
				return fmt.Errorf("market: fee bootstrap area must not be empty")
			}
			if _, ok, err := e.state.ShippingFeeGet(from, to); err != nil {
				return fmt.Errorf("%w: %v", ErrStorage, err)
			} else if ok {
				continue
			}
			amount := remote
			if from == to {
				amount = local
			}
			if err := e.state.ShippingFeePut(from, to, types.NewCoin(denom, amount)); err != nil {
				return fmt.Errorf("%w: %v", ErrStorage, err)
			}
		}
	}
	return nil
}

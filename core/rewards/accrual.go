package rewards

import (
	"fmt"

	"github.com/holiman/uint256"

	"stakevault/core/epoch"
	stakeerr "stakevault/core/errors"
	"stakevault/core/types"
)

// Earned returns amount * rate * elapsed. The product is computed in 256-bit
// precision and rejected with ErrOverflow when it does not fit in 64 bits.
func Earned(amount, rate, elapsed uint64) (uint64, error) {
	if amount == 0 || rate == 0 || elapsed == 0 {
		return 0, nil
	}
	product := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(rate))
	product.Mul(product, uint256.NewInt(elapsed))
	if !product.IsUint64() {
		return 0, fmt.Errorf("%w: reward %d*%d*%d", stakeerr.ErrOverflow, amount, rate, elapsed)
	}
	return product.Uint64(), nil
}

// CheckedAdd returns a+b or ErrOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !sum.IsUint64() {
		return 0, fmt.Errorf("%w: %d+%d", stakeerr.ErrOverflow, a, b)
	}
	return sum.Uint64(), nil
}

// Settle converts the epochs elapsed since acc.LastUpdate into pending reward
// at the account's current amount and moves LastUpdate to now. Both are unix
// seconds; epochs only buckets them, so the stored timestamp stays valid when
// the epoch length changes. It returns the reward credited by this call. The
// account is left untouched on error.
func Settle(acc *types.StakeAccount, now uint64, cfg Config, epochs epoch.Config) (uint64, error) {
	if acc == nil {
		return 0, fmt.Errorf("rewards: nil stake account")
	}
	elapsed, err := epochs.Elapsed(acc.LastUpdate, now)
	if err != nil {
		return 0, err
	}
	earned, err := Earned(acc.Amount, cfg.Rate, elapsed)
	if err != nil {
		return 0, err
	}
	pending, err := CheckedAdd(acc.PendingReward, earned)
	if err != nil {
		return 0, err
	}
	acc.PendingReward = pending
	acc.LastUpdate = now
	return earned, nil
}

// Preview returns the reward the account would hold if settled at now,
// without modifying it.
func Preview(acc *types.StakeAccount, now uint64, cfg Config, epochs epoch.Config) (uint64, error) {
	if acc == nil {
		return 0, fmt.Errorf("rewards: nil stake account")
	}
	clone := acc.Copy()
	if _, err := Settle(clone, now, cfg, epochs); err != nil {
		return 0, err
	}
	return clone.PendingReward, nil
}

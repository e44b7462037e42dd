package staking

import (
	"fmt"

	stakeerr "stakevault/core/errors"
	"stakevault/core/rewards"
	"stakevault/core/types"
)

// credit adds a deposit to the vault total.
func credit(vault *types.VaultAccount, amount uint64) error {
	total, err := rewards.CheckedAdd(vault.TotalStaked, amount)
	if err != nil {
		return err
	}
	vault.TotalStaked = total
	return nil
}

// debit removes a withdrawal from the vault total. Failing here means the
// vault no longer mirrors the sum of stake accounts.
func debit(vault *types.VaultAccount, amount uint64) error {
	if amount > vault.TotalStaked {
		return fmt.Errorf("%w: debit %d exceeds total %d", stakeerr.ErrInsufficientVaultBalance, amount, vault.TotalStaked)
	}
	vault.TotalStaked -= amount
	return nil
}

// accrue records reward newly settled on one of the vault's accounts.
func accrue(vault *types.VaultAccount, earned uint64) error {
	total, err := rewards.CheckedAdd(vault.TotalRewards, earned)
	if err != nil {
		return err
	}
	vault.TotalRewards = total
	return nil
}

// release removes a claimed payout from the outstanding reward total.
func release(vault *types.VaultAccount, paid uint64) error {
	if paid > vault.TotalRewards {
		return fmt.Errorf("%w: payout %d exceeds outstanding %d", stakeerr.ErrInsufficientRewardPool, paid, vault.TotalRewards)
	}
	vault.TotalRewards -= paid
	return nil
}

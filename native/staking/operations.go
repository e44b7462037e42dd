package staking

import (
	"context"
	"fmt"

	stakeerr "stakevault/core/errors"
	"stakevault/core/events"
	"stakevault/core/rewards"
	"stakevault/core/state"
	"stakevault/core/types"
	"stakevault/crypto"
)

// InitializeVault creates the singleton vault ledger with zero totals. It can
// only succeed once per deployment.
func (e *Engine) InitializeVault(ctx context.Context, admin crypto.Address) error {
	return e.execute(ctx, events.StakeOperationInitializeVault, admin, 0, func(tx *state.Tx, now uint64) (*result, error) {
		if admin.IsZero() {
			return nil, fmt.Errorf("%w: empty administrator", stakeerr.ErrUnauthorized)
		}
		if !e.authority.IsZero() && e.authority.Array() != admin.Array() {
			return nil, fmt.Errorf("%w: %s is not the vault authority", stakeerr.ErrUnauthorized, admin)
		}
		if _, exists, err := tx.Vault(); err != nil {
			return nil, err
		} else if exists {
			return nil, fmt.Errorf("%w: vault %s", stakeerr.ErrAlreadyInitialized, crypto.VaultAddress())
		}
		vault := &types.VaultAccount{Authority: admin.Array()}
		if err := tx.PutVault(vault); err != nil {
			return nil, err
		}
		return &result{
			vault: vault,
			event: events.VaultInitialized{ReceiptID: e.newID(), Authority: vault.Authority, Epoch: e.epochs.Index(now)},
		}, nil
	})
}

// Initialize opens a zeroed stake account for owner, stamped with the
// current time.
func (e *Engine) Initialize(ctx context.Context, owner crypto.Address) error {
	return e.execute(ctx, events.StakeOperationInitialize, owner, 0, func(tx *state.Tx, now uint64) (*result, error) {
		if owner.IsZero() {
			return nil, fmt.Errorf("%w: empty owner", stakeerr.ErrUnauthorized)
		}
		if _, exists, err := tx.StakeAccount(owner); err != nil {
			return nil, err
		} else if exists {
			return nil, fmt.Errorf("%w: stake account %s", stakeerr.ErrAlreadyInitialized, crypto.StakeAddress(owner))
		}
		acc := &types.StakeAccount{Owner: owner.Array(), LastUpdate: now}
		if err := tx.PutStakeAccount(acc); err != nil {
			return nil, err
		}
		return &result{
			event: events.StakeAccountInitialized{ReceiptID: e.newID(), Owner: acc.Owner, Epoch: e.epochs.Index(now)},
		}, nil
	})
}

// Stake settles pending reward at the current amount and then adds amount to
// both the owner's position and the vault total.
func (e *Engine) Stake(ctx context.Context, owner crypto.Address, amount uint64) error {
	return e.execute(ctx, events.StakeOperationStake, owner, amount, func(tx *state.Tx, now uint64) (*result, error) {
		if amount == 0 {
			return nil, stakeerr.ErrInvalidAmount
		}
		vault, acc, err := loadActive(tx, owner)
		if err != nil {
			return nil, err
		}
		earned, err := e.settle(vault, acc, now)
		if err != nil {
			return nil, err
		}
		newAmount, err := rewards.CheckedAdd(acc.Amount, amount)
		if err != nil {
			return nil, err
		}
		acc.Amount = newAmount
		if err := credit(vault, amount); err != nil {
			return nil, err
		}
		if err := putBoth(tx, vault, acc); err != nil {
			return nil, err
		}
		return &result{
			vault:   vault,
			settled: earned,
			event: events.StakeChanged{
				ReceiptID:   e.newID(),
				Owner:       acc.Owner,
				Amount:      amount,
				NewAmount:   acc.Amount,
				Settled:     earned,
				TotalStaked: vault.TotalStaked,
				Epoch:       e.epochs.Index(now),
			},
		}, nil
	})
}

// Unstake settles pending reward at the balance held before the withdrawal
// and then removes amount from the owner's position and the vault total.
// Withdrawing the full balance is allowed and keeps pending reward intact.
func (e *Engine) Unstake(ctx context.Context, owner crypto.Address, amount uint64) error {
	return e.execute(ctx, events.StakeOperationUnstake, owner, amount, func(tx *state.Tx, now uint64) (*result, error) {
		if amount == 0 {
			return nil, stakeerr.ErrInvalidAmount
		}
		vault, acc, err := loadActive(tx, owner)
		if err != nil {
			return nil, err
		}
		earned, err := e.settle(vault, acc, now)
		if err != nil {
			return nil, err
		}
		if amount > acc.Amount {
			return nil, fmt.Errorf("%w: requested %d, staked %d", stakeerr.ErrInsufficientBalance, amount, acc.Amount)
		}
		acc.Amount -= amount
		if err := debit(vault, amount); err != nil {
			return nil, err
		}
		if err := putBoth(tx, vault, acc); err != nil {
			return nil, err
		}
		return &result{
			vault:   vault,
			settled: earned,
			event: events.StakeChanged{
				ReceiptID:   e.newID(),
				Owner:       acc.Owner,
				Withdrawal:  true,
				Amount:      amount,
				NewAmount:   acc.Amount,
				Settled:     earned,
				TotalStaked: vault.TotalStaked,
				Epoch:       e.epochs.Index(now),
			},
		}, nil
	})
}

// Claim settles and pays the owner's entire pending reward into their reward
// balance, returning the amount paid. Claiming with nothing pending pays zero.
func (e *Engine) Claim(ctx context.Context, owner crypto.Address) (uint64, error) {
	var paid uint64
	err := e.execute(ctx, events.StakeOperationClaim, owner, 0, func(tx *state.Tx, now uint64) (*result, error) {
		vault, acc, err := loadActive(tx, owner)
		if err != nil {
			return nil, err
		}
		earned, err := e.settle(vault, acc, now)
		if err != nil {
			return nil, err
		}
		payout := acc.PendingReward
		if err := release(vault, payout); err != nil {
			return nil, err
		}
		balance, err := tx.RewardBalance(owner)
		if err != nil {
			return nil, err
		}
		if balance, err = rewards.CheckedAdd(balance, payout); err != nil {
			return nil, err
		}
		acc.PendingReward = 0
		if err := putBoth(tx, vault, acc); err != nil {
			return nil, err
		}
		if err := tx.SetRewardBalance(owner, balance); err != nil {
			return nil, err
		}
		paid = payout
		return &result{
			vault:   vault,
			settled: earned,
			claimed: payout,
			event: events.StakeRewardsClaimed{
				ReceiptID: e.newID(),
				Owner:     acc.Owner,
				Paid:      payout,
				Settled:   earned,
				Epoch:     e.epochs.Index(now),
			},
		}, nil
	})
	if err != nil {
		return 0, err
	}
	return paid, nil
}

func putBoth(tx *state.Tx, vault *types.VaultAccount, acc *types.StakeAccount) error {
	if err := tx.PutStakeAccount(acc); err != nil {
		return err
	}
	return tx.PutVault(vault)
}

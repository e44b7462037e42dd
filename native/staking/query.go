package staking

import (
	stakeerr "stakevault/core/errors"
	"stakevault/core/rewards"
	"stakevault/core/types"
	"stakevault/crypto"
)

// Vault returns the committed vault ledger.
func (e *Engine) Vault() (*types.VaultAccount, error) {
	vault, ok, err := e.state.Vault()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, stakeerr.ErrVaultNotInitialized
	}
	return vault, nil
}

// Account returns the committed stake account for owner.
func (e *Engine) Account(owner crypto.Address) (*types.StakeAccount, error) {
	acc, ok, err := e.state.StakeAccount(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, stakeerr.ErrAccountNotInitialized
	}
	return acc, nil
}

// PreviewReward reports the pending reward owner would hold if settled now.
// Nothing is written.
func (e *Engine) PreviewReward(owner crypto.Address) (uint64, error) {
	acc, err := e.Account(owner)
	if err != nil {
		return 0, err
	}
	now, err := e.now()
	if err != nil {
		return 0, err
	}
	return rewards.Preview(acc, now, e.rewards, e.epochs)
}

// RewardBalance returns the total reward already paid out to owner.
func (e *Engine) RewardBalance(owner crypto.Address) (uint64, error) {
	return e.state.RewardBalance(owner)
}

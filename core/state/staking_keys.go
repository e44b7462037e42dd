package state

import (
	"fmt"

	"stakevault/core/types"
	"stakevault/crypto"
)

func accountKey(addr crypto.Address) []byte {
	raw := addr.Bytes()
	buf := make([]byte, len(ledgerAccountPrefix)+len(raw))
	copy(buf, ledgerAccountPrefix)
	copy(buf[len(ledgerAccountPrefix):], raw)
	return buf
}

func vaultKey() []byte {
	return accountKey(crypto.VaultAddress())
}

func stakeKey(owner crypto.Address) []byte {
	return accountKey(crypto.StakeAddress(owner))
}

func rewardBalanceKey(owner crypto.Address) []byte {
	raw := owner.Bytes()
	buf := make([]byte, len(rewardBalancePrefix)+len(raw))
	copy(buf, rewardBalancePrefix)
	copy(buf[len(rewardBalancePrefix):], raw)
	return buf
}

func loadVault(r reader) (*types.VaultAccount, bool, error) {
	vault := new(types.VaultAccount)
	ok, err := kvGet(r, vaultKey(), vault)
	if err != nil || !ok {
		return nil, ok, err
	}
	return vault, true, nil
}

func loadStakeAccount(r reader, owner crypto.Address) (*types.StakeAccount, bool, error) {
	if owner.IsZero() {
		return nil, false, fmt.Errorf("state: owner must not be empty")
	}
	acc := new(types.StakeAccount)
	ok, err := kvGet(r, stakeKey(owner), acc)
	if err != nil || !ok {
		return nil, ok, err
	}
	return acc, true, nil
}

func loadRewardBalance(r reader, owner crypto.Address) (uint64, error) {
	var balance uint64
	if _, err := kvGet(r, rewardBalanceKey(owner), &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// Vault returns the committed vault ledger. The boolean reports whether the
// vault has been initialised.
func (m *Manager) Vault() (*types.VaultAccount, bool, error) {
	return loadVault(m)
}

// StakeAccount returns the committed stake account for owner.
func (m *Manager) StakeAccount(owner crypto.Address) (*types.StakeAccount, bool, error) {
	return loadStakeAccount(m, owner)
}

// RewardBalance returns the total reward paid out to owner so far.
func (m *Manager) RewardBalance(owner crypto.Address) (uint64, error) {
	return loadRewardBalance(m, owner)
}

// Vault returns the vault as seen by the transaction.
func (tx *Tx) Vault() (*types.VaultAccount, bool, error) {
	return loadVault(tx)
}

// PutVault stages the vault ledger.
func (tx *Tx) PutVault(vault *types.VaultAccount) error {
	if vault == nil {
		return fmt.Errorf("state: nil vault")
	}
	return tx.kvPut(vaultKey(), vault)
}

// StakeAccount returns the stake account for owner as seen by the transaction.
func (tx *Tx) StakeAccount(owner crypto.Address) (*types.StakeAccount, bool, error) {
	return loadStakeAccount(tx, owner)
}

// PutStakeAccount stages the stake account under the address derived from
// its owner.
func (tx *Tx) PutStakeAccount(acc *types.StakeAccount) error {
	if acc == nil {
		return fmt.Errorf("state: nil stake account")
	}
	owner, err := crypto.NewAddress(crypto.StakePrefix, acc.Owner[:])
	if err != nil {
		return err
	}
	if owner.IsZero() {
		return fmt.Errorf("state: stake account owner must not be empty")
	}
	return tx.kvPut(stakeKey(owner), acc)
}

// RewardBalance returns the paid-out reward balance for owner as seen by the
// transaction.
func (tx *Tx) RewardBalance(owner crypto.Address) (uint64, error) {
	return loadRewardBalance(tx, owner)
}

// SetRewardBalance stages the paid-out reward balance for owner.
func (tx *Tx) SetRewardBalance(owner crypto.Address, balance uint64) error {
	if owner.IsZero() {
		return fmt.Errorf("state: owner must not be empty")
	}
	return tx.kvPut(rewardBalanceKey(owner), balance)
}

package types

// VaultAccount is the singleton ledger aggregating every depositor's stake.
// TotalStaked always equals the sum of Amount over all stake accounts and
// TotalRewards the sum of their PendingReward.
type VaultAccount struct {
	Authority    [20]byte
	TotalStaked  uint64
	TotalRewards uint64
}

// StakeAccount is the per-depositor staking position. LastUpdate holds the
// unix time, in seconds, at which pending reward was last settled.
type StakeAccount struct {
	Owner         [20]byte
	Amount        uint64
	PendingReward uint64
	LastUpdate    uint64
}

// Copy returns a detached copy of the account.
func (a *StakeAccount) Copy() *StakeAccount {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

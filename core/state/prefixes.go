package state

var (
	ledgerAccountPrefix = []byte("ledger/account/")
	rewardBalancePrefix = []byte("ledger/reward-balance/")
)

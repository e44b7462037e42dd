package events

import (
	"strconv"

	"stakevault/core/types"
	"stakevault/crypto"
)

const (
	// TypeVaultInitialized is emitted once when the vault ledger is created.
	TypeVaultInitialized = "stake.vaultInitialized"
	// TypeStakeAccountInitialized is emitted when a depositor opens a stake account.
	TypeStakeAccountInitialized = "stake.accountInitialized"
	// TypeStaked captures a deposit into the vault.
	TypeStaked = "stake.staked"
	// TypeUnstaked captures a withdrawal from the vault.
	TypeUnstaked = "stake.unstaked"
	// TypeStakeRewardsClaimed is emitted when pending rewards are paid out.
	TypeStakeRewardsClaimed = "stake.rewardsClaimed"

	StakeOperationInitializeVault = "initializeVault"
	StakeOperationInitialize      = "initialize"
	StakeOperationStake           = "stake"
	StakeOperationUnstake         = "unstake"
	StakeOperationClaim           = "claim"
)

// VaultInitialized records creation of the vault ledger.
type VaultInitialized struct {
	ReceiptID string
	Authority [20]byte
	Epoch     uint64
}

// EventType satisfies the Event interface.
func (VaultInitialized) EventType() string { return TypeVaultInitialized }

// Event converts the structured payload into a broadcastable event.
func (e VaultInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultInitialized,
		Attributes: map[string]string{
			"receipt":   e.ReceiptID,
			"vault":     crypto.VaultAddress().String(),
			"authority": formatAddress(e.Authority),
			"epoch":     uintToString(e.Epoch),
		},
	}
}

// StakeAccountInitialized records creation of a depositor's stake account.
type StakeAccountInitialized struct {
	ReceiptID string
	Owner     [20]byte
	Epoch     uint64
}

// EventType satisfies the Event interface.
func (StakeAccountInitialized) EventType() string { return TypeStakeAccountInitialized }

// Event converts the structured payload into a broadcastable event.
func (e StakeAccountInitialized) Event() *types.Event {
	owner := crypto.MustNewAddress(crypto.StakePrefix, e.Owner[:])
	return &types.Event{
		Type: TypeStakeAccountInitialized,
		Attributes: map[string]string{
			"receipt": e.ReceiptID,
			"owner":   owner.String(),
			"account": crypto.StakeAddress(owner).String(),
			"epoch":   uintToString(e.Epoch),
		},
	}
}

// StakeChanged captures a deposit or withdrawal together with the reward
// settled immediately before the balance moved.
type StakeChanged struct {
	ReceiptID   string
	Owner       [20]byte
	Withdrawal  bool
	Amount      uint64
	NewAmount   uint64
	Settled     uint64
	TotalStaked uint64
	Epoch       uint64
}

// EventType satisfies the Event interface.
func (e StakeChanged) EventType() string {
	if e.Withdrawal {
		return TypeUnstaked
	}
	return TypeStaked
}

// Event converts the structured payload into a broadcastable event.
func (e StakeChanged) Event() *types.Event {
	return &types.Event{
		Type: e.EventType(),
		Attributes: map[string]string{
			"receipt":     e.ReceiptID,
			"owner":       formatAddress(e.Owner),
			"amount":      uintToString(e.Amount),
			"newAmount":   uintToString(e.NewAmount),
			"settled":     uintToString(e.Settled),
			"totalStaked": uintToString(e.TotalStaked),
			"epoch":       uintToString(e.Epoch),
		},
	}
}

// StakeRewardsClaimed captures a reward payout.
type StakeRewardsClaimed struct {
	ReceiptID string
	Owner     [20]byte
	Paid      uint64
	Settled   uint64
	Epoch     uint64
}

// EventType satisfies the Event interface.
func (StakeRewardsClaimed) EventType() string { return TypeStakeRewardsClaimed }

// Event converts the structured payload into a broadcastable event.
func (e StakeRewardsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeStakeRewardsClaimed,
		Attributes: map[string]string{
			"receipt": e.ReceiptID,
			"owner":   formatAddress(e.Owner),
			"paid":    uintToString(e.Paid),
			"settled": uintToString(e.Settled),
			"epoch":   uintToString(e.Epoch),
		},
	}
}

func formatAddress(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return crypto.MustNewAddress(crypto.StakePrefix, addr[:]).String()
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}

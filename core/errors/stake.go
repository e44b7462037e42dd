package errors

import stderrors "errors"

var (
	ErrAlreadyInitialized       = stderrors.New("stake: already initialized")
	ErrInsufficientBalance      = stderrors.New("stake: cannot unstake amount greater than staked amount")
	ErrInsufficientVaultBalance = stderrors.New("stake: vault balance below requested debit")
	ErrInvalidAmount            = stderrors.New("stake: amount must be greater than zero")
	ErrOverflow                 = stderrors.New("stake: arithmetic overflow")
	ErrClockRegression          = stderrors.New("stake: clock moved backwards")

	ErrVaultNotInitialized    = stderrors.New("stake: vault not initialized")
	ErrAccountNotInitialized  = stderrors.New("stake: stake account not initialized")
	ErrUnauthorized           = stderrors.New("stake: caller not authorised")
	ErrInsufficientRewardPool = stderrors.New("stake: reward pool below payout")
)

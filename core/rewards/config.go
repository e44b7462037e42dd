package rewards

// DefaultRate is the number of reward units accrued per staked unit per epoch.
const DefaultRate uint64 = 2

// Config captures the accrual parameters shared by every stake account.
type Config struct {
	// Rate is expressed in reward units per staked unit per epoch. Zero
	// disables accrual.
	Rate uint64
}

// DefaultConfig returns the accrual configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{Rate: DefaultRate}
}

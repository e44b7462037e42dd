package epoch

import (
	"fmt"
	"time"

	stakeerr "stakevault/core/errors"
)

// DefaultSeconds is the length of one accrual epoch: one day.
const DefaultSeconds uint64 = 86400

// Config describes how wall-clock time is bucketed into accrual epochs.
type Config struct {
	// Seconds is the duration of a single epoch. The value must be greater
	// than zero.
	Seconds uint64
}

// DefaultConfig returns the daily epoch configuration.
func DefaultConfig() Config {
	return Config{Seconds: DefaultSeconds}
}

// Validate ensures the configuration is self-consistent.
func (c Config) Validate() error {
	if c.Seconds == 0 {
		return fmt.Errorf("epoch length must be greater than zero")
	}
	return nil
}

// Timestamp converts an instant into unix seconds. Instants before the unix
// epoch cannot be represented and are reported as a clock regression.
func (c Config) Timestamp(ts time.Time) (uint64, error) {
	unix := ts.Unix()
	if unix < 0 {
		return 0, fmt.Errorf("%w: timestamp %d before unix epoch", stakeerr.ErrClockRegression, unix)
	}
	return uint64(unix), nil
}

// Index returns the epoch containing the unix timestamp.
func (c Config) Index(unix uint64) uint64 {
	if c.Seconds == 0 {
		return 0
	}
	return unix / c.Seconds
}

// Elapsed returns the number of epoch boundaries crossed between two unix
// timestamps. Consecutive calls telescope, so splitting an interval never
// loses or gains an epoch.
func (c Config) Elapsed(from, to uint64) (uint64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if to < from {
		return 0, fmt.Errorf("%w: timestamp %d before last settlement %d", stakeerr.ErrClockRegression, to, from)
	}
	return c.Index(to) - c.Index(from), nil
}

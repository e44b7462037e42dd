package config

import (
	"fmt"

	"stakevault/core/epoch"
	"stakevault/core/rewards"
	"stakevault/crypto"
	"stakevault/native/staking"
)

// Validate checks the configuration for values the ledger cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if c.EpochSeconds == 0 {
		return fmt.Errorf("config: EpochSeconds must be greater than zero")
	}
	if _, err := c.AuthorityAddress(); err != nil {
		return err
	}
	return nil
}

// AuthorityAddress decodes the optional vault authority. A blank value yields
// the zero address, which leaves vault initialisation unrestricted.
func (c *Config) AuthorityAddress() (crypto.Address, error) {
	if c.Authority == "" {
		return crypto.Address{}, nil
	}
	addr, err := crypto.DecodeAddress(c.Authority)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("config: Authority: %w", err)
	}
	if addr.Prefix() != crypto.StakePrefix {
		return crypto.Address{}, fmt.Errorf("config: Authority must use the %q prefix", crypto.StakePrefix)
	}
	return addr, nil
}

// Staking converts the file configuration into engine parameters.
func (c *Config) Staking() (staking.Config, error) {
	authority, err := c.AuthorityAddress()
	if err != nil {
		return staking.Config{}, err
	}
	return staking.Config{
		Rewards:   rewards.Config{Rate: c.RewardRate},
		Epoch:     epoch.Config{Seconds: c.EpochSeconds},
		Authority: authority,
	}, nil
}

package refresh

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Field names used in Snapshot.FieldErrors and the degraded-field metric.
const (
	FieldNative  = "native"
	FieldToken   = "token"
	FieldFaucet  = "faucet"
	FieldStaking = "staking"
)

// FaucetQuota is the faucet position in whole tokens.
type FaucetQuota struct {
	DailyLimit      decimal.Decimal
	ClaimedToday    decimal.Decimal
	Remaining       decimal.Decimal
	HasClaimedToday bool
}

// StakingPosition is the staking position in whole tokens.
type StakingPosition struct {
	Staked         decimal.Decimal
	PendingRewards decimal.Decimal
}

// Snapshot is one complete balance read for an account on a chain. It is
// never modified after it is published.
type Snapshot struct {
	Account     common.Address
	ChainID     int64
	Native      decimal.Decimal
	NativeUnit  string
	Tokens      map[string]decimal.Decimal
	Faucet      FaucetQuota
	Staking     StakingPosition
	RefreshedAt time.Time
	// FieldErrors names the fields that fell back to their default.
	FieldErrors map[string]string
}

// Degraded reports whether field fell back to its default.
func (s *Snapshot) Degraded(field string) bool {
	_, ok := s.FieldErrors[field]
	return ok
}

func emptySnapshot(account common.Address, chainID int64) *Snapshot {
	return &Snapshot{
		Account:     account,
		ChainID:     chainID,
		Native:      decimal.Zero,
		Tokens:      map[string]decimal.Decimal{},
		Faucet:      FaucetQuota{DailyLimit: decimal.Zero, ClaimedToday: decimal.Zero, Remaining: decimal.Zero},
		Staking:     StakingPosition{Staked: decimal.Zero, PendingRewards: decimal.Zero},
		FieldErrors: map[string]string{},
	}
}

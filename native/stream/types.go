package stream

import (
	"math/big"

	"paystream/crypto"
)

// Seed labels scope every custody derivation to one entity type. The session
// label covers the record's own authority address, the vault label the token
// account it controls. Authorization paths in the state layer only accept
// these exact labels, so neither can impersonate the other.
const (
	LabelSession = "stream/session"
	LabelVault   = "stream/vault"
)

// StreamSession holds one payer-to-host streaming relationship. The record is
// keyed by its derived authority address: no private key exists for it and
// only engine logic can move the custodied funds.
type StreamSession struct {
	Address           [20]byte
	Payer             [20]byte
	Host              [20]byte
	Token             string
	Rate              *big.Int
	TotalDeposited    *big.Int
	AccumulatedAmount *big.Int
	Active            bool
	Delegated         bool
	Bump              uint8
	Vault             [20]byte
	VaultBump         uint8
	CreatedAt         int64
}

// Clone returns a deep copy of the session so callers can safely mutate the
// copy without affecting the stored instance.
func (s *StreamSession) Clone() *StreamSession {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Rate = cloneBigInt(s.Rate)
	clone.TotalDeposited = cloneBigInt(s.TotalDeposited)
	clone.AccumulatedAmount = cloneBigInt(s.AccumulatedAmount)
	return &clone
}

// SessionAddress computes the canonical session authority address for a
// payer/host pair. One session exists per pair by construction.
func SessionAddress(payer, host [20]byte) ([20]byte, uint8, error) {
	addr, bump, err := crypto.DeriveAddress(LabelSession, payer[:], host[:])
	if err != nil {
		return [20]byte{}, 0, err
	}
	return addr.Raw(), bump, nil
}

// Settle splits the live vault balance between host and payer at close time.
// The host is owed the accumulated amount, clamped to what the vault actually
// holds; the payer receives the remainder. Both values are computed before any
// transfer executes so a partial payout can never change the split.
func Settle(s *StreamSession, vaultBalance *big.Int) (toHost, toPayer *big.Int) {
	balance := cloneBigInt(vaultBalance)
	toHost = cloneBigInt(s.AccumulatedAmount)
	if toHost.Cmp(balance) > 0 {
		toHost = new(big.Int).Set(balance)
	}
	toPayer = new(big.Int).Sub(balance, toHost)
	return toHost, toPayer
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

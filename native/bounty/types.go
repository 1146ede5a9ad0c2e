package bounty

import (
	"errors"
	"math/big"

	"paystream/crypto"
)

// Seed labels for bounty custody derivations. The pool address doubles as the
// record key; its vault holds the escrowed funds.
const (
	LabelPool  = "bounty/pool"
	LabelVault = "bounty/vault"
)

var (
	ErrPoolNotFound  = errors.New("bounty: pool not found")
	ErrPoolExists    = errors.New("bounty: pool already exists")
	ErrInvalidSecret = errors.New("bounty: invalid secret")
	ErrInvalidAmount = errors.New("bounty: amount must be positive")
	ErrUnknownToken  = errors.New("bounty: unknown token")
)

// BountyPool is a committed hash-lock escrow. TargetHash is immutable after
// creation; whoever first reveals its preimage collects the entire vault.
//
// The claimer account is supplied by the caller with no signature check and
// the authority's reclaim rights are never exercised. Both are deliberate:
// anyone who learns the secret can direct the payout, which callers must
// treat as part of the protocol's threat model.
type BountyPool struct {
	Address    [20]byte
	Authority  [20]byte
	Token      string
	TargetHash [32]byte
	Bump       uint8
	Vault      [20]byte
	VaultBump  uint8
	CreatedAt  int64
}

// Clone returns a copy of the pool safe for callers to mutate.
func (p *BountyPool) Clone() *BountyPool {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// PoolAddress computes the canonical pool address for an authority. One open
// pool exists per authority by construction.
func PoolAddress(authority [20]byte) ([20]byte, uint8, error) {
	addr, bump, err := crypto.DeriveAddress(LabelPool, authority[:])
	if err != nil {
		return [20]byte{}, 0, err
	}
	return addr.Raw(), bump, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

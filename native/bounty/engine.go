package bounty

import (
	"crypto/sha256"
	"errors"
	"math/big"
	"time"

	"paystream/core/events"
	"paystream/core/types"
	"paystream/crypto"
)

var errNilState = errors.New("bounty engine: state not configured")

// engineState is the slice of ledger state the bounty engine operates on.
type engineState interface {
	BountyPut(*BountyPool) error
	BountyGet(addr [20]byte) (*BountyPool, bool)
	BountyDelete(addr [20]byte) error
	VaultCreate(vault [20]byte, label string, bump uint8) error
	VaultClose(vault [20]byte) error
	Balance(addr [20]byte, token string) (*big.Int, error)
	Transfer(from, to [20]byte, token string, amount *big.Int) error
	CustodyWithdraw(vault [20]byte, label string, bump uint8, components [][]byte, to [20]byte, token string, amount *big.Int) error
	TokenExists(token string) bool
}

type bountyEvent struct {
	evt *types.Event
}

func (e bountyEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e bountyEvent) Event() *types.Event { return e.evt }

// Engine implements the hash-lock escrow over custody accounts.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a bounty engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(bountyEvent{evt: event})
}

// InitializeBounty creates a pool committed to targetHash and deposits amount
// from the authority's account into the pool's custody vault.
func (e *Engine) InitializeBounty(authority [20]byte, token string, targetHash [32]byte, amount *big.Int) (*BountyPool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !e.state.TokenExists(token) {
		return nil, ErrUnknownToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	addr, bump, err := PoolAddress(authority)
	if err != nil {
		return nil, err
	}
	if _, exists := e.state.BountyGet(addr); exists {
		return nil, ErrPoolExists
	}
	vaultAddr, vaultBump, err := crypto.DeriveAddress(LabelVault, addr[:])
	if err != nil {
		return nil, err
	}
	vault := vaultAddr.Raw()
	if err := e.state.VaultCreate(vault, LabelVault, vaultBump); err != nil {
		return nil, err
	}
	if err := e.state.Transfer(authority, vault, token, amount); err != nil {
		_ = e.state.VaultClose(vault)
		return nil, err
	}
	pool := &BountyPool{
		Address:    addr,
		Authority:  authority,
		Token:      token,
		TargetHash: targetHash,
		Bump:       bump,
		Vault:      vault,
		VaultBump:  vaultBump,
		CreatedAt:  e.nowFn(),
	}
	if err := e.state.BountyPut(pool); err != nil {
		_ = e.state.CustodyWithdraw(vault, LabelVault, vaultBump, [][]byte{addr[:]}, authority, token, amount)
		_ = e.state.VaultClose(vault)
		return nil, err
	}
	e.emit(NewInitializedEvent(pool, amount))
	return pool.Clone(), nil
}

// ClaimBounty verifies the revealed secret against the committed hash and, on
// success, pays the entire live vault balance to the claimer and erases the
// pool. The record's destruction is what makes a second claim impossible: it
// fails with ErrPoolNotFound because nothing is left to claim against.
func (e *Engine) ClaimBounty(addr [20]byte, secret []byte, claimer [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, ok := e.state.BountyGet(addr)
	if !ok {
		return nil, ErrPoolNotFound
	}
	if sha256.Sum256(secret) != pool.TargetHash {
		return nil, ErrInvalidSecret
	}
	balance, err := e.state.Balance(pool.Vault, pool.Token)
	if err != nil {
		return nil, err
	}
	payout := cloneBigInt(balance)
	if payout.Sign() > 0 {
		if err := e.state.CustodyWithdraw(pool.Vault, LabelVault, pool.VaultBump, [][]byte{addr[:]}, claimer, pool.Token, payout); err != nil {
			return nil, err
		}
	}
	if err := e.state.BountyDelete(addr); err != nil {
		return nil, err
	}
	if err := e.state.VaultClose(pool.Vault); err != nil {
		return nil, err
	}
	e.emit(NewClaimedEvent(pool, claimer, payout))
	return payout, nil
}

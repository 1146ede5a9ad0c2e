package stream

import (
	"errors"
	"math/big"
	"time"

	"paystream/core/events"
	"paystream/core/types"
	"paystream/crypto"
)

var errNilState = errors.New("stream engine: state not configured")

// engineState is the narrow slice of ledger state the engine operates on. The
// state manager implements it directly; tests provide a mock.
type engineState interface {
	StreamPut(*StreamSession) error
	StreamGet(addr [20]byte) (*StreamSession, bool)
	StreamDelete(addr [20]byte) error
	VaultCreate(vault [20]byte, label string, bump uint8) error
	VaultClose(vault [20]byte) error
	Balance(addr [20]byte, token string) (*big.Int, error)
	Transfer(from, to [20]byte, token string, amount *big.Int) error
	CustodyWithdraw(vault [20]byte, label string, bump uint8, components [][]byte, to [20]byte, token string, amount *big.Int) error
	TokenExists(token string) bool
}

type streamEvent struct {
	evt *types.Event
}

func (e streamEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e streamEvent) Event() *types.Event { return e.evt }

// Engine wires the streaming session state machine with external state, event
// emitters and the optional delegation target for the fast-path context.
type Engine struct {
	state      engineState
	emitter    events.Emitter
	delegation DelegationTarget
	nowFn      func() int64
}

// NewEngine creates a stream engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
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

// SetDelegationTarget configures the secondary execution context sessions can
// be handed off to.
func (e *Engine) SetDelegationTarget(target DelegationTarget) { e.delegation = target }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
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
	e.emitter.Emit(streamEvent{evt: event})
}

func (e *Engine) loadSession(addr [20]byte) (*StreamSession, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	session, ok := e.state.StreamGet(addr)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// InitializeStream creates a session and its custody vault, then moves the
// initial deposit from the payer's account into custody. The session starts
// active with the full deposit available to stream.
func (e *Engine) InitializeStream(payer, host [20]byte, token string, rate, amount *big.Int) (*StreamSession, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !e.state.TokenExists(token) {
		return nil, ErrUnknownToken
	}
	if rate == nil || rate.Sign() <= 0 {
		return nil, ErrInvalidRate
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	addr, bump, err := SessionAddress(payer, host)
	if err != nil {
		return nil, err
	}
	if _, exists := e.state.StreamGet(addr); exists {
		return nil, ErrSessionExists
	}
	vaultAddr, vaultBump, err := crypto.DeriveAddress(LabelVault, addr[:])
	if err != nil {
		return nil, err
	}
	vault := vaultAddr.Raw()
	if err := e.state.VaultCreate(vault, LabelVault, vaultBump); err != nil {
		return nil, err
	}
	if err := e.state.Transfer(payer, vault, token, amount); err != nil {
		_ = e.state.VaultClose(vault)
		return nil, err
	}
	session := &StreamSession{
		Address:           addr,
		Payer:             payer,
		Host:              host,
		Token:             token,
		Rate:              cloneBigInt(rate),
		TotalDeposited:    cloneBigInt(amount),
		AccumulatedAmount: big.NewInt(0),
		Active:            true,
		Bump:              bump,
		Vault:             vault,
		VaultBump:         vaultBump,
		CreatedAt:         e.nowFn(),
	}
	if err := e.state.StreamPut(session); err != nil {
		_ = e.state.CustodyWithdraw(vault, LabelVault, vaultBump, [][]byte{addr[:]}, payer, token, amount)
		_ = e.state.VaultClose(vault)
		return nil, err
	}
	e.emit(NewInitializedEvent(session))
	return session.Clone(), nil
}

// Tick accrues one rate unit of virtual entitlement to the host. No funds
// move; settlement happens at close. The caller must be the session's host,
// checked structurally: (payer, caller) has to re-derive the session address.
func (e *Engine) Tick(addr [20]byte, caller [20]byte) error {
	session, err := e.loadSession(addr)
	if err != nil {
		return err
	}
	if !session.Active {
		return ErrStreamInactive
	}
	if session.Delegated {
		return ErrSessionDelegated
	}
	if !crypto.VerifyDerived(addr, LabelSession, session.Bump, session.Payer[:], caller[:]) {
		return ErrUnauthorized
	}
	if err := applyTick(session); err != nil {
		return err
	}
	if err := e.state.StreamPut(session); err != nil {
		return err
	}
	e.emit(NewTickedEvent(session, "accounted"))
	return nil
}

// TickDirect is the earliest protocol revision: every tick transfers the rate
// straight from the vault to the host with no deposit cap. The vault's live
// balance is the only limit; once it is exhausted the custody withdrawal
// fails and the error surfaces unchanged.
func (e *Engine) TickDirect(addr [20]byte) error {
	session, err := e.loadSession(addr)
	if err != nil {
		return err
	}
	if !session.Active {
		return ErrStreamInactive
	}
	if session.Delegated {
		return ErrSessionDelegated
	}
	if err := e.state.CustodyWithdraw(session.Vault, LabelVault, session.VaultBump, [][]byte{addr[:]}, session.Host, session.Token, session.Rate); err != nil {
		return err
	}
	e.emit(NewTickedEvent(session, "direct"))
	return nil
}

// CloseStream settles the session: the host receives the accumulated amount,
// the payer the remainder of the vault, and both the session record and its
// vault are erased. Only the payer may close. A second close fails with
// ErrSessionNotFound because the record no longer exists.
func (e *Engine) CloseStream(addr [20]byte, caller [20]byte) error {
	session, err := e.loadSession(addr)
	if err != nil {
		return err
	}
	if caller != session.Payer {
		return ErrUnauthorized
	}
	if session.Delegated {
		return ErrSessionDelegated
	}
	balance, err := e.state.Balance(session.Vault, session.Token)
	if err != nil {
		return err
	}
	toHost, toPayer := Settle(session, balance)
	components := [][]byte{addr[:]}
	if toHost.Sign() > 0 {
		if err := e.state.CustodyWithdraw(session.Vault, LabelVault, session.VaultBump, components, session.Host, session.Token, toHost); err != nil {
			return err
		}
	}
	if toPayer.Sign() > 0 {
		if err := e.state.CustodyWithdraw(session.Vault, LabelVault, session.VaultBump, components, session.Payer, session.Token, toPayer); err != nil {
			return err
		}
	}
	if err := e.state.StreamDelete(addr); err != nil {
		return err
	}
	if err := e.state.VaultClose(session.Vault); err != nil {
		return err
	}
	session.Active = false
	e.emit(NewClosedEvent(session, toHost, toPayer))
	return nil
}

// applyTick advances the virtual accounting by one rate unit, enforcing the
// deposit cap. Shared between the primary engine and the rollup copy so both
// contexts apply identical rules.
func applyTick(session *StreamSession) error {
	next := new(big.Int).Add(session.AccumulatedAmount, session.Rate)
	if next.Cmp(session.TotalDeposited) > 0 {
		return ErrInsufficientFunds
	}
	session.AccumulatedAmount = next
	return nil
}

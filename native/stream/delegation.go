package stream

import (
	"sync"

	"paystream/crypto"
)

// DelegationBase carries the base derivation inputs (label and identity keys,
// no salt) handed to the secondary context. The receiver re-derives the
// canonical address from these inputs and refuses the handoff when it does
// not reproduce the delegated session, so update authority can never be
// redirected to a record the inputs do not describe.
type DelegationBase struct {
	Label string
	Payer [20]byte
	Host  [20]byte
}

// DelegationTarget is the handshake surface of the secondary execution
// context. Delegate transfers update authority for the snapshot's session;
// Undelegate returns the authoritative snapshot and releases it.
type DelegationTarget interface {
	Delegate(base DelegationBase, snapshot *StreamSession) error
	Undelegate(session [20]byte) (*StreamSession, error)
}

// Delegate hands the session's accounting authority to the configured
// secondary context. While delegated the primary context rejects ticks and
// close; funds never move during the handoff. Delegating an already delegated
// session is a no-op.
func (e *Engine) Delegate(addr [20]byte, caller [20]byte) error {
	session, err := e.loadSession(addr)
	if err != nil {
		return err
	}
	if caller != session.Payer {
		return ErrUnauthorized
	}
	if !session.Active {
		return ErrStreamInactive
	}
	if session.Delegated {
		return nil
	}
	if e.delegation == nil {
		return ErrNoDelegationTarget
	}
	base := DelegationBase{Label: LabelSession, Payer: session.Payer, Host: session.Host}
	if err := e.delegation.Delegate(base, session.Clone()); err != nil {
		return err
	}
	session.Delegated = true
	if err := e.state.StreamPut(session); err != nil {
		_, _ = e.delegation.Undelegate(addr)
		return err
	}
	e.emit(NewDelegatedEvent(session))
	return nil
}

// Undelegate retrieves the authoritative accounting snapshot from the
// secondary context and reconciles it into the primary record. The
// accumulated amount may only grow while delegated and can never exceed the
// deposit; a snapshot violating either bound is rejected and the session
// stays delegated.
func (e *Engine) Undelegate(addr [20]byte, caller [20]byte) error {
	session, err := e.loadSession(addr)
	if err != nil {
		return err
	}
	if caller != session.Payer {
		return ErrUnauthorized
	}
	if !session.Delegated {
		return ErrNotDelegated
	}
	if e.delegation == nil {
		return ErrNoDelegationTarget
	}
	snapshot, err := e.delegation.Undelegate(addr)
	if err != nil {
		return err
	}
	if snapshot == nil || snapshot.AccumulatedAmount == nil {
		return ErrAccountingInvariant
	}
	if snapshot.AccumulatedAmount.Cmp(session.AccumulatedAmount) < 0 {
		return ErrAccountingInvariant
	}
	if snapshot.AccumulatedAmount.Cmp(session.TotalDeposited) > 0 {
		return ErrAccountingInvariant
	}
	session.AccumulatedAmount = cloneBigInt(snapshot.AccumulatedAmount)
	session.Delegated = false
	if err := e.state.StreamPut(session); err != nil {
		return err
	}
	e.emit(NewUndelegatedEvent(session))
	return nil
}

// Rollup is an in-process reference implementation of DelegationTarget. It
// holds delegated session copies and applies the same accounting rules as the
// primary engine, serving both tests and the daemon's low-latency tick path.
type Rollup struct {
	mu       sync.Mutex
	sessions map[[20]byte]*StreamSession
}

func NewRollup() *Rollup {
	return &Rollup{sessions: make(map[[20]byte]*StreamSession)}
}

// Delegate accepts a session after proving the base derivation inputs
// reproduce its address and salt.
func (r *Rollup) Delegate(base DelegationBase, snapshot *StreamSession) error {
	if snapshot == nil {
		return ErrDelegationRejected
	}
	derived, bump, err := crypto.DeriveAddress(base.Label, base.Payer[:], base.Host[:])
	if err != nil {
		return err
	}
	if derived.Raw() != snapshot.Address || bump != snapshot.Bump {
		return ErrDelegationRejected
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[snapshot.Address] = snapshot.Clone()
	return nil
}

// Tick advances the delegated copy's virtual accounting. This is the
// low-latency path: no primary-ledger round trip, same cap enforcement.
func (r *Rollup) Tick(addr [20]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[addr]
	if !ok {
		return ErrSessionNotFound
	}
	if !session.Active {
		return ErrStreamInactive
	}
	return applyTick(session)
}

// Undelegate releases the session and returns the authoritative snapshot.
func (r *Rollup) Undelegate(addr [20]byte) (*StreamSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[addr]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(r.sessions, addr)
	return session, nil
}

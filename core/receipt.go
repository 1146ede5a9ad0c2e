package core

import (
	"errors"

	"paystream/core/state"
	"paystream/core/types"
	"paystream/native/bounty"
	"paystream/native/stream"
)

// Receipt statuses.
const (
	StatusApplied = "applied"
	StatusFailed  = "failed"
)

// Stable error codes surfaced in receipts. Clients branch on these instead of
// error strings.
const (
	CodeUnknownInstruction  = "unknown_instruction"
	CodeInvalidInstruction  = "invalid_instruction"
	CodeSessionNotFound     = "session_not_found"
	CodeSessionExists       = "session_exists"
	CodeStreamInactive      = "stream_inactive"
	CodeInsufficientFunds   = "insufficient_funds"
	CodeInsufficientBalance = "insufficient_balance"
	CodeUnauthorized        = "unauthorized"
	CodeInvalidAmount       = "invalid_amount"
	CodeInvalidRate         = "invalid_rate"
	CodeUnknownToken        = "unknown_token"
	CodeSessionDelegated    = "session_delegated"
	CodeNotDelegated        = "not_delegated"
	CodeNoDelegationTarget  = "no_delegation_target"
	CodeDelegationRejected  = "delegation_rejected"
	CodeAccountingInvariant = "accounting_invariant"
	CodePoolNotFound        = "pool_not_found"
	CodePoolExists          = "pool_exists"
	CodeInvalidSecret       = "invalid_secret"
	CodeAddressMismatch     = "address_mismatch"
	CodeInternal            = "internal"
)

// Receipt records the outcome of one instruction: status, the stable error
// code on failure, the events the engines emitted and the state root the
// instruction left behind.
type Receipt struct {
	Sequence  uint64         `json:"sequence"`
	Kind      string         `json:"kind"`
	Status    string         `json:"status"`
	Code      string         `json:"code,omitempty"`
	Error     string         `json:"error,omitempty"`
	Events    []*types.Event `json:"events,omitempty"`
	StateRoot string         `json:"stateRoot"`
	Timestamp int64          `json:"timestamp"`
}

var errorCodes = []struct {
	err  error
	code string
}{
	{stream.ErrSessionNotFound, CodeSessionNotFound},
	{stream.ErrSessionExists, CodeSessionExists},
	{stream.ErrStreamInactive, CodeStreamInactive},
	{stream.ErrInsufficientFunds, CodeInsufficientFunds},
	{stream.ErrUnauthorized, CodeUnauthorized},
	{stream.ErrInvalidAmount, CodeInvalidAmount},
	{stream.ErrInvalidRate, CodeInvalidRate},
	{stream.ErrUnknownToken, CodeUnknownToken},
	{stream.ErrSessionDelegated, CodeSessionDelegated},
	{stream.ErrNotDelegated, CodeNotDelegated},
	{stream.ErrNoDelegationTarget, CodeNoDelegationTarget},
	{stream.ErrDelegationRejected, CodeDelegationRejected},
	{stream.ErrAccountingInvariant, CodeAccountingInvariant},
	{bounty.ErrPoolNotFound, CodePoolNotFound},
	{bounty.ErrPoolExists, CodePoolExists},
	{bounty.ErrInvalidSecret, CodeInvalidSecret},
	{bounty.ErrInvalidAmount, CodeInvalidAmount},
	{bounty.ErrUnknownToken, CodeUnknownToken},
	{state.ErrInsufficientBalance, CodeInsufficientBalance},
	{state.ErrTokenUnknown, CodeUnknownToken},
	{state.ErrInvalidAmount, CodeInvalidAmount},
	{state.ErrAddressMismatch, CodeAddressMismatch},
	{state.ErrVaultNotFound, CodeAddressMismatch},
	{state.ErrVaultExists, CodeAddressMismatch},
}

// codeForError maps an engine error to its stable receipt code. Errors outside
// the taxonomy fall back to CodeInternal.
func codeForError(err error) string {
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}

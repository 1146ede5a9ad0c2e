package stream

import "errors"

var (
	ErrSessionNotFound     = errors.New("stream: session not found")
	ErrSessionExists       = errors.New("stream: session already exists")
	ErrStreamInactive      = errors.New("stream: session inactive")
	ErrInsufficientFunds   = errors.New("stream: insufficient stream allocation")
	ErrUnauthorized        = errors.New("stream: unauthorized caller")
	ErrInvalidAmount       = errors.New("stream: amount must be positive")
	ErrInvalidRate         = errors.New("stream: rate must be positive")
	ErrUnknownToken        = errors.New("stream: unknown token")
	ErrSessionDelegated    = errors.New("stream: session delegated to secondary context")
	ErrNotDelegated        = errors.New("stream: session not delegated")
	ErrNoDelegationTarget  = errors.New("stream: delegation target not configured")
	ErrDelegationRejected  = errors.New("stream: delegation base does not reproduce session address")
	ErrAccountingInvariant = errors.New("stream: accounting invariant violated")
)

package state

import "errors"

var (
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	ErrTokenUnknown        = errors.New("state: token not registered")
	ErrInvalidAmount       = errors.New("state: amount must not be negative")
	ErrVaultNotFound       = errors.New("state: custody vault not found")
	ErrVaultExists         = errors.New("state: custody vault already exists")
	ErrAddressMismatch     = errors.New("state: derivation inputs do not reproduce custody address")
	ErrBalanceOverflow     = errors.New("state: balance overflow")
)

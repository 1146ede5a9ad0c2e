package core

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"paystream/crypto"
)

// Instruction kinds accepted by the node. The set is fixed at startup; the
// dispatch table in node.go maps each kind to its handler.
const (
	KindStreamInitialize = "stream_initialize"
	KindStreamTick       = "stream_tick"
	KindStreamTickDirect = "stream_tick_direct"
	KindStreamClose      = "stream_close"
	KindStreamDelegate   = "stream_delegate"
	KindStreamUndelegate = "stream_undelegate"
	KindBountyInitialize = "bounty_initialize"
	KindBountyClaim      = "bounty_claim"
)

// Instruction is the wire form of a single state transition request. Caller is
// the bech32 account the request acts as; Payload carries the kind-specific
// parameters.
type Instruction struct {
	Kind    string          `json:"kind"`
	Caller  string          `json:"caller"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type streamInitializeParams struct {
	Host   string `json:"host"`
	Token  string `json:"token"`
	Rate   string `json:"rate"`
	Amount string `json:"amount"`
}

type streamSessionParams struct {
	Session string `json:"session"`
}

type bountyInitializeParams struct {
	Token      string `json:"token"`
	TargetHash string `json:"targetHash"`
	Amount     string `json:"amount"`
}

type bountyClaimParams struct {
	Pool   string `json:"pool"`
	Secret string `json:"secret"`
}

func parseAddress(value string) ([20]byte, error) {
	addr, err := crypto.DecodeAddress(value)
	if err != nil {
		return [20]byte{}, err
	}
	return addr.Raw(), nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("core: invalid amount %q", value)
	}
	return amount, nil
}

func parseHash(value string) ([32]byte, error) {
	var hash [32]byte
	raw, err := hex.DecodeString(value)
	if err != nil {
		return hash, fmt.Errorf("core: invalid hash encoding: %w", err)
	}
	if len(raw) != len(hash) {
		return hash, fmt.Errorf("core: hash must be %d bytes, got %d", len(hash), len(raw))
	}
	copy(hash[:], raw)
	return hash, nil
}

func parseSecret(value string) ([]byte, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("core: invalid secret encoding: %w", err)
	}
	return raw, nil
}

func decodePayload(payload json.RawMessage, out any) error {
	if len(payload) == 0 {
		return fmt.Errorf("core: missing payload")
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("core: malformed payload: %w", err)
	}
	return nil
}

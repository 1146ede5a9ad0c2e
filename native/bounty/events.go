package bounty

import (
	"encoding/hex"
	"math/big"

	"paystream/core/types"
)

const (
	EventTypeBountyInitialized = "bounty.initialized"
	EventTypeBountyClaimed     = "bounty.claimed"
)

// NewInitializedEvent returns the canonical payload for a newly funded pool.
func NewInitializedEvent(p *BountyPool, amount *big.Int) *types.Event {
	attrs := poolAttributes(p)
	attrs["amount"] = bigString(amount)
	return &types.Event{Type: EventTypeBountyInitialized, Attributes: attrs}
}

// NewClaimedEvent returns the payload emitted when a pool pays out and closes.
func NewClaimedEvent(p *BountyPool, claimer [20]byte, payout *big.Int) *types.Event {
	attrs := poolAttributes(p)
	attrs["claimer"] = hex.EncodeToString(claimer[:])
	attrs["payout"] = bigString(payout)
	return &types.Event{Type: EventTypeBountyClaimed, Attributes: attrs}
}

func poolAttributes(p *BountyPool) map[string]string {
	attrs := make(map[string]string)
	if p == nil {
		return attrs
	}
	attrs["pool"] = hex.EncodeToString(p.Address[:])
	attrs["authority"] = hex.EncodeToString(p.Authority[:])
	attrs["token"] = p.Token
	attrs["targetHash"] = hex.EncodeToString(p.TargetHash[:])
	return attrs
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

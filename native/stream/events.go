package stream

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"paystream/core/types"
)

const (
	EventTypeStreamInitialized = "stream.initialized"
	EventTypeStreamTicked      = "stream.ticked"
	EventTypeStreamClosed      = "stream.closed"
	EventTypeStreamDelegated   = "stream.delegated"
	EventTypeStreamUndelegated = "stream.undelegated"
)

// NewInitializedEvent returns the canonical event payload for a newly created
// session.
func NewInitializedEvent(s *StreamSession) *types.Event {
	return newStreamEvent(EventTypeStreamInitialized, s, nil)
}

// NewTickedEvent returns the event payload for one metering tick. The mode
// attribute distinguishes the accounted and direct-transfer revisions.
func NewTickedEvent(s *StreamSession, mode string) *types.Event {
	return newStreamEvent(EventTypeStreamTicked, s, map[string]string{"mode": mode})
}

// NewClosedEvent returns the event payload for a settled and erased session.
func NewClosedEvent(s *StreamSession, toHost, toPayer *big.Int) *types.Event {
	extra := map[string]string{
		"paidHost":  bigString(toHost),
		"paidPayer": bigString(toPayer),
	}
	return newStreamEvent(EventTypeStreamClosed, s, extra)
}

// NewDelegatedEvent returns the event payload emitted when update authority
// moves to the secondary context.
func NewDelegatedEvent(s *StreamSession) *types.Event {
	return newStreamEvent(EventTypeStreamDelegated, s, nil)
}

// NewUndelegatedEvent returns the event payload emitted when authority
// returns to the primary context after reconciliation.
func NewUndelegatedEvent(s *StreamSession) *types.Event {
	return newStreamEvent(EventTypeStreamUndelegated, s, nil)
}

func newStreamEvent(eventType string, s *StreamSession, extra map[string]string) *types.Event {
	attrs := make(map[string]string)
	if s != nil {
		attrs["session"] = hex.EncodeToString(s.Address[:])
		attrs["payer"] = hex.EncodeToString(s.Payer[:])
		attrs["host"] = hex.EncodeToString(s.Host[:])
		attrs["token"] = s.Token
		attrs["rate"] = bigString(s.Rate)
		attrs["totalDeposited"] = bigString(s.TotalDeposited)
		attrs["accumulatedAmount"] = bigString(s.AccumulatedAmount)
		attrs["active"] = strconv.FormatBool(s.Active)
		attrs["delegated"] = strconv.FormatBool(s.Delegated)
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

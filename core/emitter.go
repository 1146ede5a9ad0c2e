package core

import (
	"paystream/core/events"
	"paystream/core/types"
)

// eventRecorder collects the events the engines emit while one instruction is
// being applied. The node drains it into the instruction's receipt and resets
// it before the next apply. Access is serialized by the node's lock.
type eventRecorder struct {
	collected []*types.Event
}

func (r *eventRecorder) Emit(evt events.Event) {
	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	if event := carrier.Event(); event != nil {
		r.collected = append(r.collected, event)
	}
}

func (r *eventRecorder) drain() []*types.Event {
	drained := r.collected
	r.collected = nil
	return drained
}

package core

import (
	"encoding/json"
	"fmt"
)

func (n *Node) applyStreamInitialize(caller [20]byte, payload json.RawMessage) error {
	var params streamInitializeParams
	if err := decodePayload(payload, &params); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	host, err := parseAddress(params.Host)
	if err != nil {
		return fmt.Errorf("%w: host: %v", errInvalidParams, err)
	}
	rate, err := parseAmount(params.Rate)
	if err != nil {
		return fmt.Errorf("%w: rate: %v", errInvalidParams, err)
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return fmt.Errorf("%w: amount: %v", errInvalidParams, err)
	}
	_, err = n.streams.InitializeStream(caller, host, params.Token, rate, amount)
	return err
}

func parseSessionPayload(payload json.RawMessage) ([20]byte, error) {
	var params streamSessionParams
	if err := decodePayload(payload, &params); err != nil {
		return [20]byte{}, fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	session, err := parseAddress(params.Session)
	if err != nil {
		return [20]byte{}, fmt.Errorf("%w: session: %v", errInvalidParams, err)
	}
	return session, nil
}

func (n *Node) applyStreamTick(caller [20]byte, payload json.RawMessage) error {
	session, err := parseSessionPayload(payload)
	if err != nil {
		return err
	}
	return n.streams.Tick(session, caller)
}

func (n *Node) applyStreamTickDirect(caller [20]byte, payload json.RawMessage) error {
	session, err := parseSessionPayload(payload)
	if err != nil {
		return err
	}
	return n.streams.TickDirect(session)
}

func (n *Node) applyStreamClose(caller [20]byte, payload json.RawMessage) error {
	session, err := parseSessionPayload(payload)
	if err != nil {
		return err
	}
	return n.streams.CloseStream(session, caller)
}

func (n *Node) applyStreamDelegate(caller [20]byte, payload json.RawMessage) error {
	session, err := parseSessionPayload(payload)
	if err != nil {
		return err
	}
	return n.streams.Delegate(session, caller)
}

func (n *Node) applyStreamUndelegate(caller [20]byte, payload json.RawMessage) error {
	session, err := parseSessionPayload(payload)
	if err != nil {
		return err
	}
	return n.streams.Undelegate(session, caller)
}

func (n *Node) applyBountyInitialize(caller [20]byte, payload json.RawMessage) error {
	var params bountyInitializeParams
	if err := decodePayload(payload, &params); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	targetHash, err := parseHash(params.TargetHash)
	if err != nil {
		return fmt.Errorf("%w: targetHash: %v", errInvalidParams, err)
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		return fmt.Errorf("%w: amount: %v", errInvalidParams, err)
	}
	_, err = n.bounties.InitializeBounty(caller, params.Token, targetHash, amount)
	return err
}

func (n *Node) applyBountyClaim(caller [20]byte, payload json.RawMessage) error {
	var params bountyClaimParams
	if err := decodePayload(payload, &params); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		return fmt.Errorf("%w: pool: %v", errInvalidParams, err)
	}
	secret, err := parseSecret(params.Secret)
	if err != nil {
		return fmt.Errorf("%w: secret: %v", errInvalidParams, err)
	}
	_, err = n.bounties.ClaimBounty(pool, secret, caller)
	return err
}

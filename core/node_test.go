package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"

	"paystream/core/state"
	"paystream/crypto"
	"paystream/native/bounty"
	"paystream/native/stream"
	"paystream/storage"
	"paystream/storage/trie"
)

func newTestNode(t *testing.T, fund map[[20]byte]int64) *Node {
	t.Helper()
	tr, err := trie.NewMemoryTrie()
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	manager, err := state.NewManager(tr)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	node, err := NewNode(manager, storage.NewMemDB(), nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	node.SetNowFunc(func() int64 { return 1700000000 })
	err = node.Bootstrap(func(m *state.Manager) error {
		if err := m.RegisterToken("USD", "Test Dollar", 6); err != nil {
			return err
		}
		for addr, amount := range fund {
			if err := m.SetBalance(addr, "USD", big.NewInt(amount)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return node
}

func testAddr(b byte) [20]byte {
	var addr [20]byte
	addr[19] = b
	return addr
}

func bech(addr [20]byte) string {
	return crypto.NewAddress(crypto.PayPrefix, addr[:]).String()
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func mustApply(t *testing.T, node *Node, instr Instruction) *Receipt {
	t.Helper()
	receipt, err := node.Apply(instr)
	if err != nil {
		t.Fatalf("apply %s: %v", instr.Kind, err)
	}
	if receipt.Status != StatusApplied {
		t.Fatalf("apply %s rejected: code=%s error=%s", instr.Kind, receipt.Code, receipt.Error)
	}
	return receipt
}

func balanceOf(t *testing.T, node *Node, addr [20]byte) *big.Int {
	t.Helper()
	balance, err := node.State().Balance(addr, "USD")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return balance
}

func TestApplyStreamLifecycle(t *testing.T) {
	payer := testAddr(1)
	host := testAddr(2)
	node := newTestNode(t, map[[20]byte]int64{payer: 100})

	receipt := mustApply(t, node, Instruction{
		Kind:   KindStreamInitialize,
		Caller: bech(payer),
		Payload: payload(t, streamInitializeParams{
			Host:   bech(host),
			Token:  "USD",
			Rate:   "10",
			Amount: "100",
		}),
	})
	if len(receipt.Events) != 1 || receipt.Events[0].Type != stream.EventTypeStreamInitialized {
		t.Fatalf("unexpected events: %+v", receipt.Events)
	}
	if balanceOf(t, node, payer).Sign() != 0 {
		t.Fatalf("deposit not taken from payer")
	}

	sessionAddr, _, err := stream.SessionAddress(payer, host)
	if err != nil {
		t.Fatalf("session address: %v", err)
	}
	session := bech(sessionAddr)
	for i := 0; i < 3; i++ {
		mustApply(t, node, Instruction{
			Kind:    KindStreamTick,
			Caller:  bech(host),
			Payload: payload(t, streamSessionParams{Session: session}),
		})
	}

	closeReceipt := mustApply(t, node, Instruction{
		Kind:    KindStreamClose,
		Caller:  bech(payer),
		Payload: payload(t, streamSessionParams{Session: session}),
	})
	if len(closeReceipt.Events) != 1 || closeReceipt.Events[0].Type != stream.EventTypeStreamClosed {
		t.Fatalf("unexpected close events: %+v", closeReceipt.Events)
	}
	if got := balanceOf(t, node, host); got.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("host settlement: got %s, want 30", got)
	}
	if got := balanceOf(t, node, payer); got.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("payer refund: got %s, want 70", got)
	}

	// The record is gone; a second close has nothing to act on.
	receipt, err = node.Apply(Instruction{
		Kind:    KindStreamClose,
		Caller:  bech(payer),
		Payload: payload(t, streamSessionParams{Session: session}),
	})
	if err != nil {
		t.Fatalf("apply second close: %v", err)
	}
	if receipt.Status != StatusFailed || receipt.Code != CodeSessionNotFound {
		t.Fatalf("second close: status=%s code=%s", receipt.Status, receipt.Code)
	}
}

func TestApplyRollsBackFailedInstruction(t *testing.T) {
	payer := testAddr(1)
	host := testAddr(2)
	node := newTestNode(t, map[[20]byte]int64{payer: 50})
	rootBefore := node.State().Trie().Root()

	receipt, err := node.Apply(Instruction{
		Kind:   KindStreamInitialize,
		Caller: bech(payer),
		Payload: payload(t, streamInitializeParams{
			Host:   bech(host),
			Token:  "USD",
			Rate:   "10",
			Amount: "100",
		}),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if receipt.Status != StatusFailed || receipt.Code != CodeInsufficientBalance {
		t.Fatalf("status=%s code=%s", receipt.Status, receipt.Code)
	}
	if node.State().Trie().Root() != rootBefore {
		t.Fatalf("failed instruction moved the state root")
	}
	if got := balanceOf(t, node, payer); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("failed instruction mutated balance: %s", got)
	}
	// The vault created before the transfer failed must not survive rollback.
	sessionAddr, _, err := stream.SessionAddress(payer, host)
	if err != nil {
		t.Fatalf("session address: %v", err)
	}
	if _, ok := node.State().StreamGet(sessionAddr); ok {
		t.Fatalf("session record survived rollback")
	}
}

func TestApplyUnknownKind(t *testing.T) {
	node := newTestNode(t, nil)
	receipt, err := node.Apply(Instruction{Kind: "stream_freeze", Caller: bech(testAddr(1))})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if receipt.Status != StatusFailed || receipt.Code != CodeUnknownInstruction {
		t.Fatalf("status=%s code=%s", receipt.Status, receipt.Code)
	}
}

func TestApplyMalformedPayload(t *testing.T) {
	node := newTestNode(t, nil)
	receipt, err := node.Apply(Instruction{
		Kind:    KindStreamTick,
		Caller:  bech(testAddr(1)),
		Payload: json.RawMessage(`{"session": 42}`),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if receipt.Status != StatusFailed || receipt.Code != CodeInvalidInstruction {
		t.Fatalf("status=%s code=%s", receipt.Status, receipt.Code)
	}
}

func TestBountyClaimFlow(t *testing.T) {
	authority := testAddr(5)
	claimer := testAddr(6)
	node := newTestNode(t, map[[20]byte]int64{authority: 500})

	secret := []byte("open sesame")
	hash := sha256.Sum256(secret)
	mustApply(t, node, Instruction{
		Kind:   KindBountyInitialize,
		Caller: bech(authority),
		Payload: payload(t, bountyInitializeParams{
			Token:      "USD",
			TargetHash: hex.EncodeToString(hash[:]),
			Amount:     "500",
		}),
	})

	poolAddr, _, err := bounty.PoolAddress(authority)
	if err != nil {
		t.Fatalf("pool address: %v", err)
	}
	pool := bech(poolAddr)

	receipt, err := node.Apply(Instruction{
		Kind:   KindBountyClaim,
		Caller: bech(claimer),
		Payload: payload(t, bountyClaimParams{
			Pool:   pool,
			Secret: hex.EncodeToString([]byte("wrong guess")),
		}),
	})
	if err != nil {
		t.Fatalf("apply wrong claim: %v", err)
	}
	if receipt.Status != StatusFailed || receipt.Code != CodeInvalidSecret {
		t.Fatalf("wrong secret: status=%s code=%s", receipt.Status, receipt.Code)
	}
	if balanceOf(t, node, claimer).Sign() != 0 {
		t.Fatalf("wrong secret moved funds")
	}

	mustApply(t, node, Instruction{
		Kind:   KindBountyClaim,
		Caller: bech(claimer),
		Payload: payload(t, bountyClaimParams{
			Pool:   pool,
			Secret: hex.EncodeToString(secret),
		}),
	})
	if got := balanceOf(t, node, claimer); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("claim payout: got %s, want 500", got)
	}

	// At most one claim: the pool record no longer exists.
	receipt, err = node.Apply(Instruction{
		Kind:   KindBountyClaim,
		Caller: bech(claimer),
		Payload: payload(t, bountyClaimParams{
			Pool:   pool,
			Secret: hex.EncodeToString(secret),
		}),
	})
	if err != nil {
		t.Fatalf("apply second claim: %v", err)
	}
	if receipt.Status != StatusFailed || receipt.Code != CodePoolNotFound {
		t.Fatalf("second claim: status=%s code=%s", receipt.Status, receipt.Code)
	}
}

func TestDelegatedSessionRoundTrip(t *testing.T) {
	payer := testAddr(1)
	host := testAddr(2)
	node := newTestNode(t, map[[20]byte]int64{payer: 100})

	mustApply(t, node, Instruction{
		Kind:   KindStreamInitialize,
		Caller: bech(payer),
		Payload: payload(t, streamInitializeParams{
			Host:   bech(host),
			Token:  "USD",
			Rate:   "10",
			Amount: "100",
		}),
	})
	sessionAddr, _, err := stream.SessionAddress(payer, host)
	if err != nil {
		t.Fatalf("session address: %v", err)
	}
	session := bech(sessionAddr)

	mustApply(t, node, Instruction{
		Kind:    KindStreamDelegate,
		Caller:  bech(payer),
		Payload: payload(t, streamSessionParams{Session: session}),
	})

	// While delegated the primary context refuses to advance the session.
	receipt, err := node.Apply(Instruction{
		Kind:    KindStreamTick,
		Caller:  bech(host),
		Payload: payload(t, streamSessionParams{Session: session}),
	})
	if err != nil {
		t.Fatalf("apply tick while delegated: %v", err)
	}
	if receipt.Code != CodeSessionDelegated {
		t.Fatalf("tick while delegated: code=%s", receipt.Code)
	}

	for i := 0; i < 4; i++ {
		if err := node.Rollup().Tick(sessionAddr); err != nil {
			t.Fatalf("rollup tick %d: %v", i, err)
		}
	}

	mustApply(t, node, Instruction{
		Kind:    KindStreamUndelegate,
		Caller:  bech(payer),
		Payload: payload(t, streamSessionParams{Session: session}),
	})
	mustApply(t, node, Instruction{
		Kind:    KindStreamClose,
		Caller:  bech(payer),
		Payload: payload(t, streamSessionParams{Session: session}),
	})
	if got := balanceOf(t, node, host); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("host settlement after delegation: got %s, want 40", got)
	}
	if got := balanceOf(t, node, payer); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("payer refund after delegation: got %s, want 60", got)
	}
}

func TestReceiptJournalRoundTrip(t *testing.T) {
	node := newTestNode(t, nil)
	applied, err := node.Apply(Instruction{Kind: "bogus", Caller: bech(testAddr(1))})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	loaded, err := node.Receipt(applied.Sequence)
	if err != nil {
		t.Fatalf("load receipt: %v", err)
	}
	if loaded.Kind != applied.Kind || loaded.Status != applied.Status || loaded.Code != applied.Code {
		t.Fatalf("journal mismatch: %+v != %+v", loaded, applied)
	}
}

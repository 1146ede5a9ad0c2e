package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"paystream/core/state"
	"paystream/native/bounty"
	"paystream/native/stream"
	"paystream/observability/metrics"
	"paystream/storage"
)

var errInvalidParams = errors.New("core: invalid instruction parameters")

type handlerFunc func(n *Node, caller [20]byte, payload json.RawMessage) error

// Node owns the engines and applies instructions against the state trie one
// at a time. Each instruction is atomic: on success the trie is committed, on
// failure it is rolled back to the last committed root. Every outcome is
// journaled as a receipt.
type Node struct {
	mu       sync.Mutex
	state    *state.Manager
	db       storage.Database
	streams  *stream.Engine
	bounties *bounty.Engine
	rollup   *stream.Rollup
	recorder *eventRecorder
	handlers map[string]handlerFunc
	logger   *slog.Logger
	metrics  *metrics.InstructionMetrics
	sequence uint64
	nowFn    func() int64
}

// NewNode wires the engines to the state manager and builds the dispatch
// table. The receipt journal is written to db.
func NewNode(manager *state.Manager, db storage.Database, logger *slog.Logger) (*Node, error) {
	if manager == nil {
		return nil, fmt.Errorf("core: state manager must not be nil")
	}
	if db == nil {
		return nil, fmt.Errorf("core: receipt database must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	recorder := &eventRecorder{}
	rollup := stream.NewRollup()

	streamEngine := stream.NewEngine()
	streamEngine.SetState(manager)
	streamEngine.SetEmitter(recorder)
	streamEngine.SetDelegationTarget(rollup)

	bountyEngine := bounty.NewEngine()
	bountyEngine.SetState(manager)
	bountyEngine.SetEmitter(recorder)

	node := &Node{
		state:    manager,
		db:       db,
		streams:  streamEngine,
		bounties: bountyEngine,
		rollup:   rollup,
		recorder: recorder,
		logger:   logger,
		metrics:  metrics.Instructions(),
		nowFn:    func() int64 { return time.Now().Unix() },
	}
	node.handlers = map[string]handlerFunc{
		KindStreamInitialize: (*Node).applyStreamInitialize,
		KindStreamTick:       (*Node).applyStreamTick,
		KindStreamTickDirect: (*Node).applyStreamTickDirect,
		KindStreamClose:      (*Node).applyStreamClose,
		KindStreamDelegate:   (*Node).applyStreamDelegate,
		KindStreamUndelegate: (*Node).applyStreamUndelegate,
		KindBountyInitialize: (*Node).applyBountyInitialize,
		KindBountyClaim:      (*Node).applyBountyClaim,
	}
	return node, nil
}

// State exposes the state manager for genesis funding and read APIs.
func (n *Node) State() *state.Manager { return n.state }

// Rollup exposes the secondary execution context so its low-latency tick path
// can be driven directly.
func (n *Node) Rollup() *stream.Rollup { return n.rollup }

// SetNowFunc overrides the receipt timestamp source, for deterministic tests.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		n.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	n.nowFn = now
}

// Bootstrap applies genesis-style state mutations (token registry, initial
// balances) and commits them in one batch. It must run before the first Apply.
func (n *Node) Bootstrap(seed func(*state.Manager) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	committed := n.state.Trie().Root()
	if err := seed(n.state); err != nil {
		if resetErr := n.state.Trie().Reset(committed); resetErr != nil {
			return fmt.Errorf("core: rollback after failed bootstrap: %w", resetErr)
		}
		return err
	}
	if _, err := n.state.Trie().Commit(committed, n.sequence); err != nil {
		return fmt.Errorf("core: commit bootstrap state: %w", err)
	}
	return nil
}

// Apply executes one instruction. Engine rejections are encoded in the
// returned receipt, not the error; a non-nil error means the node itself
// failed (journal or trie) and the receipt could not be produced cleanly.
func (n *Node) Apply(instr Instruction) (*Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	started := time.Now()
	n.sequence++
	receipt := &Receipt{
		Sequence:  n.sequence,
		Kind:      instr.Kind,
		Timestamp: n.nowFn(),
	}
	committed := n.state.Trie().Root()

	handler, ok := n.handlers[instr.Kind]
	if !ok {
		return n.finishFailure(receipt, committed, fmt.Errorf("core: unknown instruction kind %q", instr.Kind), CodeUnknownInstruction)
	}
	caller, err := parseAddress(instr.Caller)
	if err != nil {
		return n.finishFailure(receipt, committed, fmt.Errorf("%w: caller: %v", errInvalidParams, err), CodeInvalidInstruction)
	}

	if err := handler(n, caller, instr.Payload); err != nil {
		n.recorder.drain()
		if resetErr := n.state.Trie().Reset(committed); resetErr != nil {
			n.logger.Error("state rollback failed", "kind", instr.Kind, "error", resetErr)
			return nil, fmt.Errorf("core: rollback after %q: %w", instr.Kind, resetErr)
		}
		code := codeForError(err)
		if errors.Is(err, errInvalidParams) {
			code = CodeInvalidInstruction
		}
		return n.finishFailure(receipt, committed, err, code)
	}

	root, err := n.state.Trie().Commit(committed, n.sequence)
	if err != nil {
		n.recorder.drain()
		n.logger.Error("state commit failed", "kind", instr.Kind, "error", err)
		if resetErr := n.state.Trie().Reset(committed); resetErr != nil {
			return nil, fmt.Errorf("core: rollback after failed commit: %w", resetErr)
		}
		return n.finishFailure(receipt, committed, err, CodeInternal)
	}

	receipt.Status = StatusApplied
	receipt.Events = n.recorder.drain()
	receipt.StateRoot = root.Hex()
	if err := n.persistReceipt(receipt); err != nil {
		return nil, err
	}
	n.observeApplied(instr.Kind, time.Since(started))
	n.logger.Info("instruction applied", "kind", instr.Kind, "sequence", receipt.Sequence, "stateRoot", receipt.StateRoot)
	return receipt, nil
}

func (n *Node) finishFailure(receipt *Receipt, committed common.Hash, cause error, code string) (*Receipt, error) {
	receipt.Status = StatusFailed
	receipt.Code = code
	receipt.Error = cause.Error()
	receipt.StateRoot = committed.Hex()
	if err := n.persistReceipt(receipt); err != nil {
		return nil, err
	}
	n.metrics.ObserveFailure(receipt.Kind, code)
	n.logger.Info("instruction rejected", "kind", receipt.Kind, "sequence", receipt.Sequence, "code", code, "error", cause.Error())
	return receipt, nil
}

func (n *Node) observeApplied(kind string, elapsed time.Duration) {
	n.metrics.ObserveApplied(kind, elapsed)
	switch kind {
	case KindStreamInitialize:
		n.metrics.AdjustStreamsActive(1)
	case KindStreamClose:
		n.metrics.AdjustStreamsActive(-1)
	case KindBountyInitialize:
		n.metrics.AdjustBountiesActive(1)
	case KindBountyClaim:
		n.metrics.AdjustBountiesActive(-1)
	}
}

func receiptKey(sequence uint64) []byte {
	return []byte(fmt.Sprintf("receipts/%020d", sequence))
}

func (n *Node) persistReceipt(receipt *Receipt) error {
	encoded, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("core: encode receipt: %w", err)
	}
	if err := n.db.Put(receiptKey(receipt.Sequence), encoded); err != nil {
		return fmt.Errorf("core: journal receipt %d: %w", receipt.Sequence, err)
	}
	return nil
}

// Receipt loads a journaled receipt by sequence number.
func (n *Node) Receipt(sequence uint64) (*Receipt, error) {
	raw, err := n.db.Get(receiptKey(sequence))
	if err != nil {
		return nil, err
	}
	receipt := new(Receipt)
	if err := json.Unmarshal(raw, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Package ledgertest provides an in-memory proof.Ledger and helpers to
// build internally consistent checkpoints for tests.
package ledgertest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"tangled.org/atscan.net/lightproof/checkpoint"
	"tangled.org/atscan.net/lightproof/internal/codec"
	"tangled.org/atscan.net/lightproof/internal/types"
	"tangled.org/atscan.net/lightproof/proof"
)

// Ledger is an in-memory ledger. Every fetch returns a fresh deep copy so
// callers can never alias stored checkpoints.
type Ledger struct {
	mu          sync.RWMutex
	checkpoints map[checkpoint.SequenceNumber][]byte
	txIndex     map[types.Digest]checkpoint.SequenceNumber
	unavailable map[checkpoint.SequenceNumber]bool
	resolveErr  error
	fetchHook   func(ctx context.Context, seq checkpoint.SequenceNumber)

	ResolveCalls atomic.Int64
	FetchCalls   atomic.Int64
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{
		checkpoints: make(map[checkpoint.SequenceNumber][]byte),
		txIndex:     make(map[types.Digest]checkpoint.SequenceNumber),
		unavailable: make(map[checkpoint.SequenceNumber]bool),
	}
}

// Add stores a checkpoint and indexes every transaction in its manifest
func (l *Ledger) Add(data *checkpoint.Data) {
	raw, err := codec.Marshal(data)
	if err != nil {
		panic(fmt.Sprintf("ledgertest: encode checkpoint: %v", err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seq := data.Summary.SequenceNumber
	l.checkpoints[seq] = raw
	for _, entry := range data.Contents.Transactions {
		l.txIndex[entry.Transaction] = seq
	}
}

// Index points txID at seq without storing any data
func (l *Ledger) Index(txID types.Digest, seq checkpoint.SequenceNumber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txIndex[txID] = seq
}

// MarkUnavailable makes FetchCheckpoint fail with Unavailable for seq
func (l *Ledger) MarkUnavailable(seq checkpoint.SequenceNumber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unavailable[seq] = true
}

// FailResolve makes every ResolveCheckpoint call return err
func (l *Ledger) FailResolve(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resolveErr = err
}

// OnFetch registers a hook that runs at the start of FetchCheckpoint
func (l *Ledger) OnFetch(hook func(ctx context.Context, seq checkpoint.SequenceNumber)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fetchHook = hook
}

// ResolveCheckpoint implements proof.Ledger
func (l *Ledger) ResolveCheckpoint(ctx context.Context, txID types.Digest) (checkpoint.SequenceNumber, error) {
	l.ResolveCalls.Add(1)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.resolveErr != nil {
		return 0, l.resolveErr
	}
	seq, ok := l.txIndex[txID]
	if !ok {
		return 0, proof.NewError(proof.KindNotFound, "transaction %s not found", txID)
	}
	return seq, nil
}

// FetchCheckpoint implements proof.Ledger
func (l *Ledger) FetchCheckpoint(ctx context.Context, seq checkpoint.SequenceNumber) (*checkpoint.Data, error) {
	l.FetchCalls.Add(1)

	l.mu.RLock()
	hook := l.fetchHook
	raw, ok := l.checkpoints[seq]
	unavailable := l.unavailable[seq]
	l.mu.RUnlock()

	if hook != nil {
		hook(ctx, seq)
	}
	if err := ctx.Err(); err != nil {
		return nil, proof.WrapError(proof.KindUnavailable, err, "fetch of checkpoint %d aborted", seq)
	}
	if unavailable {
		return nil, proof.NewError(proof.KindUnavailable, "checkpoint %d not yet available", seq)
	}
	if !ok {
		return nil, proof.NewError(proof.KindNotFound, "checkpoint %d not found", seq)
	}

	var data checkpoint.Data
	if err := codec.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("ledgertest: decode checkpoint: %w", err)
	}
	return &data, nil
}

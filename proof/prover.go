// Package proof resolves a transaction to the checkpoint that finalized
// it, cross-validates the transaction against that checkpoint's manifest
// and assembles a proof bundle a light client can verify on its own.
package proof

import (
	"context"
	"time"

	"tangled.org/atscan.net/lightproof/checkpoint"
	"tangled.org/atscan.net/lightproof/internal/types"
)

// Ledger is the read access the prover needs from a full node. A single
// long-lived implementation is shared by all requests and owns its own
// transport, retry and rate-limit policy.
type Ledger interface {
	// ResolveCheckpoint returns the checkpoint containing txID, or a
	// NotFound error if the transaction is unknown or not yet checkpointed.
	ResolveCheckpoint(ctx context.Context, txID types.Digest) (checkpoint.SequenceNumber, error)

	// FetchCheckpoint returns the full checkpoint payload. NotFound if the
	// sequence number never existed, Unavailable if it is not retrievable yet.
	FetchCheckpoint(ctx context.Context, seq checkpoint.SequenceNumber) (*checkpoint.Data, error)
}

// Observer receives per-request lifecycle events. Implementations must be
// safe for concurrent use.
type Observer interface {
	StageCompleted(stage Stage, elapsed time.Duration)
	ProofServed(txID types.Digest, seq checkpoint.SequenceNumber, b *Bundle, elapsed time.Duration)
	ProofFailed(txID types.Digest, err *Error, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) StageCompleted(Stage, time.Duration) {}
func (nopObserver) ProofServed(types.Digest, checkpoint.SequenceNumber, *Bundle, time.Duration) {}
func (nopObserver) ProofFailed(types.Digest, *Error, time.Duration) {}

// Prover runs Resolve → Fetch → Validate → Assemble for one request at a
// time per call. It keeps no per-request state between calls and is safe
// for concurrent use.
type Prover struct {
	ledger   Ledger
	observer Observer
}

// Option configures a Prover
type Option func(*Prover)

// WithObserver sets the lifecycle observer (logging, metrics)
func WithObserver(o Observer) Option {
	return func(p *Prover) {
		if o != nil {
			p.observer = o
		}
	}
}

// NewProver creates a prover on top of an injected ledger handle
func NewProver(ledger Ledger, opts ...Option) *Prover {
	p := &Prover{
		ledger:   ledger,
		observer: nopObserver{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// request tracks one run of the state machine
type request struct {
	txID       types.Digest
	seq        checkpoint.SequenceNumber
	stage      Stage
	stageStart time.Time
}

// advance moves to the next stage, reporting how long the current one took
func (r *request) advance(o Observer) {
	now := time.Now()
	if r.stage != StageIdle {
		o.StageCompleted(r.stage, now.Sub(r.stageStart))
	}
	r.stage = r.stage.next()
	r.stageStart = now
}

// ProveString parses a base58 transaction identifier and proves it
func (p *Prover) ProveString(ctx context.Context, txID string) (*Bundle, error) {
	d, err := types.ParseDigest(txID)
	if err != nil {
		perr := WrapError(KindInvalidInput, err, "invalid transaction identifier")
		p.observer.ProofFailed(types.Digest{}, perr, 0)
		return nil, perr
	}
	return p.Prove(ctx, d)
}

// Prove builds the proof bundle for txID. Every external call is made
// once; any failure is terminal and returned as an *Error. No partial
// bundle is ever returned.
func (p *Prover) Prove(ctx context.Context, txID types.Digest) (*Bundle, error) {
	start := time.Now()
	req := &request{txID: txID, stage: StageIdle, stageStart: start}

	b, err := p.run(ctx, req)
	if err != nil {
		perr := atStage(err, req.stage, KindUnavailable)
		p.observer.ProofFailed(txID, perr, time.Since(start))
		return nil, perr
	}

	p.observer.ProofServed(txID, req.seq, b, time.Since(start))
	return b, nil
}

func (p *Prover) run(ctx context.Context, req *request) (*Bundle, error) {
	// Resolving
	req.advance(p.observer)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seq, err := p.ledger.ResolveCheckpoint(ctx, req.txID)
	if err != nil {
		return nil, err
	}
	req.seq = seq

	// Fetching
	req.advance(p.observer)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.ledger.FetchCheckpoint(ctx, seq)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, NewError(KindUnavailable, "ledger returned no data for checkpoint %d", seq)
	}

	// Validating
	req.advance(p.observer)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkSequence(seq, data); err != nil {
		return nil, err
	}
	validated, err := CrossValidate(req.txID, data)
	if err != nil {
		return nil, err
	}

	// Assembling
	req.advance(p.observer)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := Assemble(validated)
	if err != nil {
		return nil, err
	}

	req.advance(p.observer)
	return b, nil
}

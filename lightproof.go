// Package lightproof builds and checks checkpoint inclusion proofs.
//
// A Service resolves a transaction to the checkpoint that finalized it,
// cross-validates the transaction against the checkpoint manifest and
// returns a Bundle that a light client can check with Verify.
package lightproof

import (
	"context"

	"tangled.org/atscan.net/lightproof/checkpoint"
	"tangled.org/atscan.net/lightproof/internal/ledger"
	"tangled.org/atscan.net/lightproof/internal/storage"
	"tangled.org/atscan.net/lightproof/internal/types"
	"tangled.org/atscan.net/lightproof/proof"
)

// Re-export commonly used types for convenience
type (
	Bundle   = proof.Bundle
	Response = proof.Response
	Verified = proof.Verified
	Error    = proof.Error
	Kind     = proof.Kind
	Observer = proof.Observer
	FileInfo = storage.FileInfo

	Digest         = types.Digest
	Logger         = types.Logger
	SequenceNumber = checkpoint.SequenceNumber
)

// Re-export constants
const (
	BUNDLE_FILE_EXT = types.BUNDLE_FILE_EXT

	KindInvalidInput      = proof.KindInvalidInput
	KindNotFound          = proof.KindNotFound
	KindUnavailable       = proof.KindUnavailable
	KindIntegrityMismatch = proof.KindIntegrityMismatch
	KindInternal          = proof.KindInternal
)

// Service proves transactions against one full node
type Service struct {
	client *ledger.Client
	prover *proof.Prover
	ops    *storage.Operations
}

// New creates a Service for the node at rpcURL
func New(rpcURL string, opts ...Option) *Service {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	client := ledger.NewClient(rpcURL, cfg.clientOptions...)

	var proverOpts []proof.Option
	if cfg.observer != nil {
		proverOpts = append(proverOpts, proof.WithObserver(cfg.observer))
	}

	return &Service{
		client: client,
		prover: proof.NewProver(client, proverOpts...),
		ops:    storage.NewOperations(cfg.logger),
	}
}

// Close releases the node client
func (s *Service) Close() {
	s.client.Close()
}

// Prove builds the proof bundle for a base58 transaction identifier
func (s *Service) Prove(ctx context.Context, txID string) (*Bundle, error) {
	return s.prover.ProveString(ctx, txID)
}

// ProveToFile builds the proof bundle and saves it to path
func (s *Service) ProveToFile(ctx context.Context, txID, path string) (*FileInfo, error) {
	b, err := s.Prove(ctx, txID)
	if err != nil {
		return nil, err
	}
	return s.ops.SaveBundle(path, b)
}

// LoadBundle reads a bundle file written by ProveToFile
func LoadBundle(path string) (*Bundle, error) {
	return storage.NewOperations(nil).LoadBundle(path)
}

// ParseDigest decodes a base58 transaction identifier
func ParseDigest(s string) (Digest, error) {
	return types.ParseDigest(s)
}

// Verify checks a bundle for txID the way a light client does
func Verify(b *Bundle, txID Digest) (*Verified, error) {
	return proof.Verify(b, txID)
}

// KindOf returns the failure kind of err
func KindOf(err error) Kind {
	return proof.KindOf(err)
}

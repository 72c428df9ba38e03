// Package checkpoint models the authenticated data of one finalized
// checkpoint: its summary, the ordered manifest of execution digests and
// the transaction records the manifest commits to.
//
// Struct tags double as the CBOR field names used for canonical
// encoding, so renaming a field changes every digest.
package checkpoint

import (
	"tangled.org/atscan.net/lightproof/internal/types"
)

// Digest tags for domain-separated hashing
const (
	TagTransactionData    = "TransactionData"
	TagTransactionEffects = "TransactionEffects"
	TagTransactionEvents  = "TransactionEvents"
	TagCheckpointContents = "CheckpointContents"
	TagCheckpointSummary  = "CheckpointSummary"
)

// SequenceNumber identifies a finalized checkpoint
type SequenceNumber uint64

// Summary is the signed header of a checkpoint
type Summary struct {
	Epoch                    uint64          `json:"epoch"`
	SequenceNumber           SequenceNumber  `json:"sequence_number"`
	NetworkTotalTransactions uint64          `json:"network_total_transactions"`
	ContentDigest            types.Digest    `json:"content_digest"`
	PreviousDigest           *types.Digest   `json:"previous_digest,omitempty"`
	TimestampMs              uint64          `json:"timestamp_ms"`
	EndOfEpoch               *EndOfEpochData `json:"end_of_epoch_data,omitempty"`

	// Authenticator is carried through untouched; checking it against a
	// committee is the bundle consumer's job.
	Authenticator *Authenticator `json:"authenticator,omitempty"`
}

// Authenticator is the aggregated committee signature over a summary
type Authenticator struct {
	Epoch      uint64 `json:"epoch"`
	Signature  []byte `json:"signature"`
	SignersMap []byte `json:"signers_map"`
}

// EndOfEpochData is present on the last checkpoint of an epoch
type EndOfEpochData struct {
	NextEpochCommittee       []CommitteeMember `json:"next_epoch_committee"`
	NextEpochProtocolVersion uint64            `json:"next_epoch_protocol_version"`
}

// CommitteeMember is one authority and its voting power
type CommitteeMember struct {
	AuthorityName []byte `json:"authority_name"`
	StakeUnit     uint64 `json:"stake_unit"`
}

// ExecutionDigests is one manifest entry
type ExecutionDigests struct {
	Transaction types.Digest `json:"transaction"`
	Effects     types.Digest `json:"effects"`
}

// Contents is the ordered manifest of everything executed in a checkpoint
type Contents struct {
	Transactions []ExecutionDigests `json:"transactions"`
}

// Transaction is a signed transaction as submitted
type Transaction struct {
	Data       []byte   `json:"data"`
	Signatures [][]byte `json:"signatures,omitempty"`
}

// ExecutionStatus reports whether execution succeeded
type ExecutionStatus struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// GasCostSummary summarizes gas charged for a transaction
type GasCostSummary struct {
	ComputationCost         uint64 `json:"computation_cost"`
	StorageCost             uint64 `json:"storage_cost"`
	StorageRebate           uint64 `json:"storage_rebate"`
	NonRefundableStorageFee uint64 `json:"non_refundable_storage_fee"`
}

// ObjectChange is one object touched by a transaction
type ObjectChange struct {
	ObjectID types.Digest `json:"object_id"`
	Version  uint64       `json:"version"`
	Digest   types.Digest `json:"digest"`
	Kind     string       `json:"kind"`
}

// Effects is the execution outcome of a transaction
type Effects struct {
	Status            ExecutionStatus `json:"status"`
	ExecutedEpoch     uint64          `json:"executed_epoch"`
	GasUsed           GasCostSummary  `json:"gas_used"`
	TransactionDigest types.Digest    `json:"transaction_digest"`
	EventsDigest      *types.Digest   `json:"events_digest,omitempty"`
	Dependencies      []types.Digest  `json:"dependencies,omitempty"`
	Changes           []ObjectChange  `json:"changes,omitempty"`
}

// Event is a single event emitted during execution
type Event struct {
	PackageID types.Digest `json:"package_id"`
	Module    string       `json:"module"`
	Sender    types.Digest `json:"sender"`
	Type      string       `json:"type"`
	Contents  []byte       `json:"contents"`
}

// Events is the ordered list of events of one transaction
type Events struct {
	Data []Event `json:"data"`
}

// TransactionRecord is a transaction plus its execution effects
type TransactionRecord struct {
	Transaction Transaction `json:"transaction"`
	Effects     Effects     `json:"effects"`
	Events      *Events     `json:"events,omitempty"`
}

// Data is the full payload of one checkpoint
type Data struct {
	Summary      Summary             `json:"checkpoint_summary"`
	Contents     Contents            `json:"checkpoint_contents"`
	Transactions []TransactionRecord `json:"transactions"`
}

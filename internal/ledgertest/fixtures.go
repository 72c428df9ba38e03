package ledgertest

import (
	"fmt"

	"tangled.org/atscan.net/lightproof/checkpoint"
	"tangled.org/atscan.net/lightproof/internal/codec"
	"tangled.org/atscan.net/lightproof/internal/types"
)

// RecordOption customizes a record built by NewRecord
type RecordOption func(*checkpoint.TransactionRecord)

// WithEvents attaches events and commits the effects to them
func WithEvents(events ...checkpoint.Event) RecordOption {
	return func(r *checkpoint.TransactionRecord) {
		r.Events = &checkpoint.Events{Data: events}
		d, err := r.Events.Digest()
		if err != nil {
			panic(fmt.Sprintf("ledgertest: digest events: %v", err))
		}
		r.Effects.EventsDigest = &d
	}
}

// WithGas sets the computation cost so otherwise identical records differ
func WithGas(computation uint64) RecordOption {
	return func(r *checkpoint.TransactionRecord) {
		r.Effects.GasUsed.ComputationCost = computation
	}
}

// WithFailure marks execution as failed
func WithFailure(reason string) RecordOption {
	return func(r *checkpoint.TransactionRecord) {
		r.Effects.Status = checkpoint.ExecutionStatus{Success: false, Error: reason}
	}
}

// NewRecord builds a record whose transaction data is payload and whose
// effects point back at the transaction digest
func NewRecord(payload string, opts ...RecordOption) checkpoint.TransactionRecord {
	tx := checkpoint.Transaction{
		Data:       []byte(payload),
		Signatures: [][]byte{codec.Hash("Signature", []byte(payload)).Bytes()},
	}

	rec := checkpoint.TransactionRecord{
		Transaction: tx,
		Effects: checkpoint.Effects{
			Status:            checkpoint.ExecutionStatus{Success: true},
			GasUsed:           checkpoint.GasCostSummary{ComputationCost: 1000, StorageCost: 2000, StorageRebate: 500},
			TransactionDigest: tx.Digest(),
			Changes: []checkpoint.ObjectChange{{
				ObjectID: codec.Hash("Object", []byte(payload)),
				Version:  1,
				Digest:   codec.Hash("ObjectDigest", []byte(payload)),
				Kind:     "created",
			}},
		},
	}

	for _, opt := range opts {
		opt(&rec)
	}
	return rec
}

// TxID returns the transaction digest of a record
func TxID(rec checkpoint.TransactionRecord) types.Digest {
	return rec.Transaction.Digest()
}

// EffectsDigest returns the computed effects digest of a record
func EffectsDigest(rec checkpoint.TransactionRecord) types.Digest {
	d, err := rec.Effects.Digest()
	if err != nil {
		panic(fmt.Sprintf("ledgertest: digest effects: %v", err))
	}
	return d
}

// BuildCheckpoint assembles a consistent checkpoint: every record is
// stamped as executed in epoch, the manifest lists every record in order
// and the summary commits to the manifest. Callers comparing effects
// should read the records back from the returned data.
func BuildCheckpoint(epoch uint64, seq checkpoint.SequenceNumber, records ...checkpoint.TransactionRecord) *checkpoint.Data {
	data := &checkpoint.Data{
		Summary: checkpoint.Summary{
			Epoch:                    epoch,
			SequenceNumber:           seq,
			NetworkTotalTransactions: uint64(seq)*10 + uint64(len(records)),
			TimestampMs:              1_700_000_000_000 + uint64(seq)*250,
			Authenticator: &checkpoint.Authenticator{
				Epoch:      epoch,
				Signature:  codec.Hash("AggregateSignature", []byte(fmt.Sprint(seq))).Bytes(),
				SignersMap: []byte{0x3a, 0x30, 0x00, 0x00},
			},
		},
		Contents:     checkpoint.Contents{Transactions: make([]checkpoint.ExecutionDigests, 0, len(records))},
		Transactions: records,
	}

	for i := range records {
		records[i].Effects.ExecutedEpoch = epoch
		entry, err := records[i].Effects.ExecutionDigests()
		if err != nil {
			panic(fmt.Sprintf("ledgertest: execution digests: %v", err))
		}
		data.Contents.Transactions = append(data.Contents.Transactions, entry)
	}

	Reseal(data)
	return data
}

// Reseal recomputes the summary content digest after a test tampers with
// the manifest, so the tampering is only visible to deeper checks
func Reseal(data *checkpoint.Data) {
	d, err := data.Contents.Digest()
	if err != nil {
		panic(fmt.Sprintf("ledgertest: digest contents: %v", err))
	}
	data.Summary.ContentDigest = d
}

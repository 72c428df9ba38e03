package proof

import (
	"tangled.org/atscan.net/lightproof/checkpoint"
	"tangled.org/atscan.net/lightproof/internal/types"
)

// Validated is a checkpoint summary, its contents and one transaction
// record that passed CrossValidate. It cannot be built any other way, so
// Assemble never sees an unvalidated triple.
type Validated struct {
	txID     types.Digest
	summary  *checkpoint.Summary
	contents *checkpoint.Contents
	record   *checkpoint.TransactionRecord
	position int
}

// TxID returns the transaction the triple was validated for
func (v *Validated) TxID() types.Digest { return v.txID }

// Summary returns the validated checkpoint summary
func (v *Validated) Summary() *checkpoint.Summary { return v.summary }

// Contents returns the validated manifest
func (v *Validated) Contents() *checkpoint.Contents { return v.contents }

// Record returns the matched transaction record
func (v *Validated) Record() *checkpoint.TransactionRecord { return v.record }

// Position returns the index of the matched manifest entry
func (v *Validated) Position() int { return v.position }

// CrossValidate locates txID in the checkpoint manifest and proves that
// the matching transaction record hashes to the digests the manifest
// recorded.
//
// Records are matched to manifest entries by their computed transaction
// digest, never by position.
func CrossValidate(txID types.Digest, data *checkpoint.Data) (*Validated, error) {
	if data == nil {
		return nil, NewError(KindIntegrityMismatch, "no checkpoint data")
	}

	contentDigest, err := data.Contents.Digest()
	if err != nil {
		return nil, WrapError(KindInternal, err, "failed to digest checkpoint contents")
	}
	if contentDigest != data.Summary.ContentDigest {
		return nil, NewError(KindIntegrityMismatch,
			"checkpoint %d contents digest %s does not match summary content digest %s",
			data.Summary.SequenceNumber, contentDigest, data.Summary.ContentDigest)
	}

	if auth := data.Summary.Authenticator; auth != nil && auth.Epoch != data.Summary.Epoch {
		return nil, NewError(KindIntegrityMismatch,
			"checkpoint %d summary is for epoch %d but signed for epoch %d",
			data.Summary.SequenceNumber, data.Summary.Epoch, auth.Epoch)
	}

	entry, position, ok := data.Contents.Find(txID)
	if !ok {
		return nil, NewError(KindNotFound,
			"transaction %s not in checkpoint %d", txID, data.Summary.SequenceNumber)
	}

	record := checkpoint.IndexRecords(data.Transactions)[txID]
	if record == nil {
		return nil, NewError(KindIntegrityMismatch,
			"checkpoint %d manifest lists transaction %s but no record carries it",
			data.Summary.SequenceNumber, txID)
	}

	if record.Effects.TransactionDigest != txID {
		return nil, NewError(KindIntegrityMismatch,
			"effects of transaction %s name transaction %s", txID, record.Effects.TransactionDigest)
	}

	effectsDigest, err := record.Effects.Digest()
	if err != nil {
		return nil, WrapError(KindInternal, err, "failed to digest effects of %s", txID)
	}
	if effectsDigest != entry.Effects {
		return nil, NewError(KindIntegrityMismatch,
			"transaction %s: manifest effects digest %s, computed %s",
			txID, entry.Effects, effectsDigest)
	}

	if record.Effects.ExecutedEpoch != data.Summary.Epoch {
		return nil, NewError(KindIntegrityMismatch,
			"transaction %s executed in epoch %d, checkpoint %d is in epoch %d",
			txID, record.Effects.ExecutedEpoch, data.Summary.SequenceNumber, data.Summary.Epoch)
	}

	if err := checkEvents(txID, record); err != nil {
		return nil, err
	}

	return &Validated{
		txID:     txID,
		summary:  &data.Summary,
		contents: &data.Contents,
		record:   record,
		position: position,
	}, nil
}

// checkEvents binds the record's events to the digest its effects commit to
func checkEvents(txID types.Digest, record *checkpoint.TransactionRecord) error {
	committed := record.Effects.EventsDigest

	if committed == nil {
		if record.Events != nil && len(record.Events.Data) > 0 {
			return NewError(KindIntegrityMismatch,
				"transaction %s carries %d events its effects do not commit to",
				txID, len(record.Events.Data))
		}
		return nil
	}

	if record.Events == nil {
		return NewError(KindIntegrityMismatch,
			"transaction %s effects commit to events %s but none were returned", txID, *committed)
	}

	eventsDigest, err := record.Events.Digest()
	if err != nil {
		return WrapError(KindInternal, err, "failed to digest events of %s", txID)
	}
	if eventsDigest != *committed {
		return NewError(KindIntegrityMismatch,
			"transaction %s: effects events digest %s, computed %s", txID, *committed, eventsDigest)
	}
	return nil
}

// checkSequence guards against the fetch source answering for a
// different checkpoint than the one requested
func checkSequence(want checkpoint.SequenceNumber, data *checkpoint.Data) error {
	if data.Summary.SequenceNumber != want {
		return NewError(KindIntegrityMismatch,
			"requested checkpoint %d, ledger returned %d", want, data.Summary.SequenceNumber)
	}
	return nil
}

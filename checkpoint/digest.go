package checkpoint

import (
	"tangled.org/atscan.net/lightproof/internal/codec"
	"tangled.org/atscan.net/lightproof/internal/types"
)

// Digest of the transaction, computed from its raw data
func (t *Transaction) Digest() types.Digest {
	return codec.Hash(TagTransactionData, t.Data)
}

// Digest of the effects, computed from their canonical encoding
func (e *Effects) Digest() (types.Digest, error) {
	return codec.HashValue(TagTransactionEffects, e)
}

// ExecutionDigests returns the manifest entry these effects should appear under
func (e *Effects) ExecutionDigests() (ExecutionDigests, error) {
	d, err := e.Digest()
	if err != nil {
		return ExecutionDigests{}, err
	}
	return ExecutionDigests{Transaction: e.TransactionDigest, Effects: d}, nil
}

// Digest of the events
func (ev *Events) Digest() (types.Digest, error) {
	return codec.HashValue(TagTransactionEvents, ev)
}

// Digest of the contents; the summary's ContentDigest commits to it
func (c *Contents) Digest() (types.Digest, error) {
	return codec.HashValue(TagCheckpointContents, c)
}

// Digest of the summary excluding its authenticator (what the committee signs)
func (s *Summary) Digest() (types.Digest, error) {
	unsigned := *s
	unsigned.Authenticator = nil
	return codec.HashValue(TagCheckpointSummary, &unsigned)
}

// Len returns the number of manifest entries
func (c *Contents) Len() int {
	return len(c.Transactions)
}

// Find returns the manifest entry for tx. Transaction digests are unique
// within a checkpoint, so the first hit is the only one.
func (c *Contents) Find(tx types.Digest) (ExecutionDigests, int, bool) {
	for i, entry := range c.Transactions {
		if entry.Transaction == tx {
			return entry, i, true
		}
	}
	return ExecutionDigests{}, -1, false
}

// IndexRecords keys records by their independently computed transaction
// digest. When two records carry the same transaction the first one is
// kept, like Contents.Find.
func IndexRecords(records []TransactionRecord) map[types.Digest]*TransactionRecord {
	index := make(map[types.Digest]*TransactionRecord, len(records))
	for i := range records {
		rec := &records[i]
		d := rec.Transaction.Digest()
		if _, dup := index[d]; dup {
			continue
		}
		index[d] = rec
	}
	return index
}

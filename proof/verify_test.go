package proof_test

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"tangled.org/atscan.net/lightproof/checkpoint"
	"tangled.org/atscan.net/lightproof/internal/codec"
	"tangled.org/atscan.net/lightproof/internal/ledgertest"
	"tangled.org/atscan.net/lightproof/proof"
)

func TestVerify(t *testing.T) {
	data, recA, recB := fixtureC2()
	b := assembleFor(t, recB, data)

	t.Run("Valid", func(t *testing.T) {
		v, err := proof.Verify(b, ledgertest.TxID(recB))
		require.NoError(t, err)
		require.Equal(t, 1, v.Position)
		require.Equal(t, data.Summary.SequenceNumber, v.Summary.SequenceNumber)
		require.Equal(t, recB.Transaction.Data, v.Record.Transaction.Data)
		require.NotNil(t, v.Summary.Authenticator)
	})

	t.Run("OtherTransactionInManifest", func(t *testing.T) {
		// txA is in the manifest but the bundle carries recB
		_, err := proof.Verify(b, ledgertest.TxID(recA))
		requireKind(t, err, proof.KindIntegrityMismatch)
	})

	t.Run("AbsentTransaction", func(t *testing.T) {
		_, err := proof.Verify(b, ledgertest.TxID(ledgertest.NewRecord("txZ")))
		requireKind(t, err, proof.KindNotFound)
	})

	t.Run("EpochMismatch", func(t *testing.T) {
		resp := b.Response()
		resp.EpochID++

		_, err := proof.Verify(proof.FromResponse(resp), ledgertest.TxID(recB))
		requireKind(t, err, proof.KindIntegrityMismatch)
	})

	t.Run("TamperedTransaction", func(t *testing.T) {
		tampered := recB
		tampered.Effects.GasUsed.StorageRebate = 999999
		raw, err := codec.Marshal(&tampered)
		require.NoError(t, err)

		resp := b.Response()
		resp.TransactionBytes = raw

		_, err = proof.Verify(proof.FromResponse(resp), ledgertest.TxID(recB))
		requireKind(t, err, proof.KindIntegrityMismatch)
	})

	t.Run("NonCanonicalSummary", func(t *testing.T) {
		// default fxamacker options keep struct declaration order instead
		// of the deterministic length-first key order
		loose, err := cbor.Marshal(&data.Summary)
		require.NoError(t, err)
		require.NotEqual(t, b.SummaryBytes(), loose)

		var probe checkpoint.Summary
		require.NoError(t, codec.Unmarshal(loose, &probe))

		resp := b.Response()
		resp.CheckpointSummaryBytes = loose

		_, err = proof.Verify(proof.FromResponse(resp), ledgertest.TxID(recB))
		requireKind(t, err, proof.KindIntegrityMismatch)
	})

	t.Run("Malformed", func(t *testing.T) {
		resp := b.Response()
		resp.CheckpointContentsBytes = []byte{0xff, 0x00}

		_, err := proof.Verify(proof.FromResponse(resp), ledgertest.TxID(recB))
		requireKind(t, err, proof.KindInvalidInput)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := proof.Verify(proof.FromResponse(proof.Response{}), ledgertest.TxID(recB))
		requireKind(t, err, proof.KindInvalidInput)

		_, err = proof.Verify(nil, ledgertest.TxID(recB))
		requireKind(t, err, proof.KindInvalidInput)
	})
}

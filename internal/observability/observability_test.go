package observability_test

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"tangled.org/atscan.net/lightproof/internal/ledgertest"
	"tangled.org/atscan.net/lightproof/internal/observability"
	"tangled.org/atscan.net/lightproof/proof"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestLogger(t *testing.T) {
	txID := ledgertest.TxID(ledgertest.NewRecord("log"))

	t.Run("BaseFields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := observability.NewLogger("lightproof", "v1.2.3", &buf)
		logger.WithRequest("req-1", "GET", "/gettxdata").Info("hello")

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		require.Equal(t, "lightproof", lines[0]["service"])
		require.Equal(t, "v1.2.3", lines[0]["version"])
		require.Equal(t, "req-1", lines[0]["request_id"])
		require.Equal(t, "/gettxdata", lines[0]["path"])
		require.Equal(t, "info", lines[0]["level"])
	})

	t.Run("IntegrityMismatchIsError", func(t *testing.T) {
		var buf bytes.Buffer
		logger := observability.NewLogger("lightproof", "test", &buf)

		err := &proof.Error{Kind: proof.KindIntegrityMismatch, Stage: proof.StageValidating, Message: "effects digest differs"}
		logger.ProofFailed(txID, err, 3*time.Millisecond)

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		require.Equal(t, "error", lines[0]["level"])
		require.Equal(t, "IntegrityMismatch", lines[0]["kind"])
		require.Equal(t, "validating", lines[0]["stage"])
		require.Equal(t, txID.String(), lines[0]["tx_id"])
	})

	t.Run("NotFoundIsInfo", func(t *testing.T) {
		var buf bytes.Buffer
		logger := observability.NewLogger("lightproof", "test", &buf)
		logger.ProofFailed(txID, &proof.Error{Kind: proof.KindNotFound, Stage: proof.StageResolving}, time.Millisecond)

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		require.Equal(t, "info", lines[0]["level"])
	})

	t.Run("WithLevel", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := observability.NewLogger("lightproof", "test", &buf).WithLevel("warn")
		require.NoError(t, err)

		logger.Info("dropped")
		logger.Warn("kept")
		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		require.Equal(t, "kept", lines[0]["message"])

		_, err = logger.WithLevel("loud")
		require.Error(t, err)
	})

	t.Run("PrintfAdapter", func(t *testing.T) {
		var buf bytes.Buffer
		logger := observability.NewLogger("lightproof", "test", &buf)
		logger.Printf("waiting %d", 5)
		logger.Println("a", "b")

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 2)
		require.Equal(t, "waiting 5", lines[0]["message"])
		require.Equal(t, "a b", lines[1]["message"])
	})

	t.Run("ErrorField", func(t *testing.T) {
		var buf bytes.Buffer
		observability.NewLogger("lightproof", "test", &buf).Error(errors.New("boom"), "failed")
		lines := decodeLines(t, &buf)
		require.Equal(t, "boom", lines[0]["error"])
	})
}

func TestNewOutput(t *testing.T) {
	var buf bytes.Buffer

	w, err := observability.NewOutput("json", &buf)
	require.NoError(t, err)
	require.Equal(t, io.Writer(&buf), w)

	w, err = observability.NewOutput("console", &buf)
	require.NoError(t, err)
	require.NotEqual(t, io.Writer(&buf), w)

	_, err = observability.NewOutput("xml", &buf)
	require.Error(t, err)
}

func TestMetrics(t *testing.T) {
	t.Run("Outcomes", func(t *testing.T) {
		m := observability.NewMetrics()

		m.RecordOutcome(nil)
		m.RecordOutcome(&proof.Error{Kind: proof.KindNotFound})
		m.RecordOutcome(&proof.Error{Kind: proof.KindIntegrityMismatch, Stage: proof.StageValidating})

		require.Equal(t, 1.0, testutil.ToFloat64(m.ProofsTotal.WithLabelValues("ok")))
		require.Equal(t, 1.0, testutil.ToFloat64(m.ProofsTotal.WithLabelValues("NotFound")))
		require.Equal(t, 1.0, testutil.ToFloat64(m.ProofsTotal.WithLabelValues("IntegrityMismatch")))
		require.Equal(t, 1.0, testutil.ToFloat64(m.IntegrityMismatchesTotal.WithLabelValues("validating")))
	})

	t.Run("IndependentRegistries", func(t *testing.T) {
		a := observability.NewMetrics()
		b := observability.NewMetrics()
		a.RecordOutcome(nil)
		require.Equal(t, 0.0, testutil.ToFloat64(b.ProofsTotal.WithLabelValues("ok")))
	})

	t.Run("Handler", func(t *testing.T) {
		m := observability.NewMetrics()
		m.RecordOutcome(nil)

		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), `lightproof_proofs_total{outcome="ok"} 1`)
	})
}

func TestRecorder(t *testing.T) {
	rec := ledgertest.NewRecord("recorder")
	data := ledgertest.BuildCheckpoint(2, 5, rec)
	l := ledgertest.New()
	l.Add(data)

	var buf bytes.Buffer
	logger := observability.NewLogger("lightproof", "test", &buf)
	metrics := observability.NewMetrics()
	prover := proof.NewProver(l, proof.WithObserver(observability.NewRecorder(logger, metrics)))

	_, err := prover.Prove(t.Context(), ledgertest.TxID(rec))
	require.NoError(t, err)

	_, err = prover.Prove(t.Context(), ledgertest.TxID(ledgertest.NewRecord("missing")))
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ProofsTotal.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.ProofsTotal.WithLabelValues("NotFound")))
	require.GreaterOrEqual(t, testutil.CollectAndCount(metrics.StageDuration), 1)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	require.Equal(t, "proof served", lines[0]["message"])
	require.Equal(t, float64(5), lines[0]["checkpoint"])
	require.Equal(t, "proof failed", lines[1]["message"])

	t.Run("NilCollaborators", func(t *testing.T) {
		p := proof.NewProver(l, proof.WithObserver(observability.NewRecorder(nil, nil)))
		_, err := p.Prove(t.Context(), ledgertest.TxID(rec))
		require.NoError(t, err)
	})
}

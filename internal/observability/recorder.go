package observability

import (
	"time"

	"tangled.org/atscan.net/lightproof/checkpoint"
	"tangled.org/atscan.net/lightproof/internal/types"
	"tangled.org/atscan.net/lightproof/proof"
)

// Recorder reports prover progress to the logger and metrics. Either may
// be nil.
type Recorder struct {
	logger  *Logger
	metrics *Metrics
}

var _ proof.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder
func NewRecorder(logger *Logger, metrics *Metrics) *Recorder {
	return &Recorder{logger: logger, metrics: metrics}
}

// StageCompleted observes the stage duration
func (r *Recorder) StageCompleted(stage proof.Stage, elapsed time.Duration) {
	if r.metrics != nil {
		r.metrics.StageDuration.WithLabelValues(stage.String()).Observe(elapsed.Seconds())
	}
}

// ProofServed counts, times and logs a served proof
func (r *Recorder) ProofServed(txID types.Digest, seq checkpoint.SequenceNumber, b *proof.Bundle, elapsed time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordOutcome(nil)
		r.metrics.ProofDuration.Observe(elapsed.Seconds())
		r.metrics.BundleSizeBytes.Observe(float64(b.Size()))
	}
	if r.logger != nil {
		r.logger.ProofServed(txID, seq, b.Epoch(), b.Size(), elapsed)
	}
}

// ProofFailed counts, times and logs a failed proof by kind
func (r *Recorder) ProofFailed(txID types.Digest, err *proof.Error, elapsed time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordOutcome(err)
		r.metrics.ProofDuration.Observe(elapsed.Seconds())
	}
	if r.logger != nil {
		r.logger.ProofFailed(txID, err, elapsed)
	}
}

package server

import (
	"sync"
	"time"

	"tangled.org/atscan.net/lightproof/proof"
)

// TxDataRequest is the /gettxdata request body
type TxDataRequest struct {
	TxID string `json:"tx_id"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusResponse is the /status endpoint response
type StatusResponse struct {
	Server ServerStatus `json:"server"`
	Proofs ProofStatus  `json:"proofs"`
}

// ServerStatus contains server information
type ServerStatus struct {
	Version          string `json:"version"`
	RPCURL           string `json:"rpc_url,omitempty"`
	WebSocketEnabled bool   `json:"websocket_enabled"`
	MetricsEnabled   bool   `json:"metrics_enabled"`
	UptimeSeconds    int    `json:"uptime_seconds"`
}

// ProofStatus counts proofs served since startup
type ProofStatus struct {
	Served     int64            `json:"served"`
	Failed     int64            `json:"failed"`
	ByKind     map[string]int64 `json:"failed_by_kind,omitempty"`
	LastServed *time.Time       `json:"last_served,omitempty"`
}

// WSRequest is one WebSocket request; a bare base58 string is accepted too
type WSRequest struct {
	ID   string `json:"id,omitempty"`
	TxID string `json:"tx_id"`
}

// WSResponse answers one WSRequest
type WSResponse struct {
	ID     string          `json:"id,omitempty"`
	TxID   string          `json:"tx_id"`
	Result *proof.Response `json:"result,omitempty"`
	Error  *ErrorResponse  `json:"error,omitempty"`
}

// proofStats backs /status
type proofStats struct {
	mu         sync.Mutex
	served     int64
	failed     int64
	byKind     map[string]int64
	lastServed time.Time
}

func newProofStats() *proofStats {
	return &proofStats{byKind: make(map[string]int64)}
}

func (ps *proofStats) record(err error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if err == nil {
		ps.served++
		ps.lastServed = time.Now()
		return
	}
	ps.failed++
	ps.byKind[string(proof.KindOf(err))]++
}

func (ps *proofStats) snapshot() ProofStatus {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	status := ProofStatus{
		Served: ps.served,
		Failed: ps.failed,
	}
	if len(ps.byKind) > 0 {
		status.ByKind = make(map[string]int64, len(ps.byKind))
		for k, v := range ps.byKind {
			status.ByKind[k] = v
		}
	}
	if !ps.lastServed.IsZero() {
		t := ps.lastServed
		status.LastServed = &t
	}
	return status
}

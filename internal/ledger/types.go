package ledger

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// rpcRequest is a JSON-RPC 2.0 request envelope
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// rpcResponse is a JSON-RPC 2.0 response envelope
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is the JSON-RPC error object
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// TransactionBlock is the subset of sui_getTransactionBlock we read
type TransactionBlock struct {
	Digest      string        `json:"digest"`
	Checkpoint  *Uint64String `json:"checkpoint,omitempty"`
	TimestampMs *Uint64String `json:"timestampMs,omitempty"`
}

// TransactionBlockOptions mirrors the node's response options; the
// resolver only needs the checkpoint, which is always returned
type TransactionBlockOptions struct {
	ShowInput   bool `json:"showInput,omitempty"`
	ShowEffects bool `json:"showEffects,omitempty"`
	ShowEvents  bool `json:"showEvents,omitempty"`
}

// Uint64String decodes u64 values that nodes send either as JSON numbers
// or as decimal strings
type Uint64String uint64

// UnmarshalJSON implements json.Unmarshaler
func (u *Uint64String) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid u64 %q: %w", data, err)
	}
	*u = Uint64String(v)
	return nil
}

// MarshalJSON implements json.Marshaler
func (u Uint64String) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(strconv.FormatUint(uint64(u), 10))), nil
}

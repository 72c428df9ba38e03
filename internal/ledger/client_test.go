package ledger_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"tangled.org/atscan.net/lightproof/checkpoint"
	"tangled.org/atscan.net/lightproof/internal/ledger"
	"tangled.org/atscan.net/lightproof/internal/ledgertest"
	"tangled.org/atscan.net/lightproof/proof"
)

type silentLogger struct{}

func (silentLogger) Printf(format string, v ...interface{}) {}
func (silentLogger) Println(v ...interface{})               {}

func newTestClient(url string, opts ...ledger.ClientOption) *ledger.Client {
	opts = append([]ledger.ClientOption{ledger.WithLogger(silentLogger{})}, opts...)
	return ledger.NewClient(url, opts...)
}

func expectKind(t *testing.T, err error, kind proof.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := proof.KindOf(err); got != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, got, err)
	}
}

// rpcHandler answers sui_getTransactionBlock with the given raw result or error
func rpcHandler(t *testing.T, result string, rpcErr string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}

		var req struct {
			JSONRPC string            `json:"jsonrpc"`
			ID      uint64            `json:"id"`
			Method  string            `json:"method"`
			Params  []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Method != "sui_getTransactionBlock" {
			t.Errorf("unexpected method: %s", req.Method)
		}
		if len(req.Params) != 2 {
			t.Errorf("expected 2 params, got %d", len(req.Params))
		}

		w.Header().Set("Content-Type", "application/json")
		if rpcErr != "" {
			io.WriteString(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"`+rpcErr+`"}}`)
			return
		}
		io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":`+result+`}`)
	}
}

// ====================================================================================
// ResolveCheckpoint
// ====================================================================================

func TestResolveCheckpoint(t *testing.T) {
	rec := ledgertest.NewRecord("resolve-me")
	txID := ledgertest.TxID(rec)

	t.Run("StringCheckpoint", func(t *testing.T) {
		server := httptest.NewServer(rpcHandler(t, `{"digest":"`+txID.String()+`","checkpoint":"1234"}`, ""))
		defer server.Close()

		client := newTestClient(server.URL)
		defer client.Close()

		seq, err := client.ResolveCheckpoint(context.Background(), txID)
		if err != nil {
			t.Fatalf("ResolveCheckpoint failed: %v", err)
		}
		if seq != 1234 {
			t.Errorf("expected checkpoint 1234, got %d", seq)
		}
	})

	t.Run("NumericCheckpoint", func(t *testing.T) {
		server := httptest.NewServer(rpcHandler(t, `{"digest":"x","checkpoint":77}`, ""))
		defer server.Close()

		client := newTestClient(server.URL)
		defer client.Close()

		seq, err := client.ResolveCheckpoint(context.Background(), txID)
		if err != nil {
			t.Fatalf("ResolveCheckpoint failed: %v", err)
		}
		if seq != 77 {
			t.Errorf("expected checkpoint 77, got %d", seq)
		}
	})

	t.Run("NotCheckpointedYet", func(t *testing.T) {
		server := httptest.NewServer(rpcHandler(t, `{"digest":"x"}`, ""))
		defer server.Close()

		client := newTestClient(server.URL)
		defer client.Close()

		_, err := client.ResolveCheckpoint(context.Background(), txID)
		expectKind(t, err, proof.KindNotFound)
	})

	t.Run("UnknownTransaction", func(t *testing.T) {
		server := httptest.NewServer(rpcHandler(t, "", "Could not find the referenced transaction"))
		defer server.Close()

		client := newTestClient(server.URL)
		defer client.Close()

		_, err := client.ResolveCheckpoint(context.Background(), txID)
		expectKind(t, err, proof.KindNotFound)
		if !errors.Is(err, proof.ErrNotFound) {
			t.Errorf("expected ErrNotFound in chain, got %v", err)
		}
		if errors.Is(err, proof.ErrUnavailable) {
			t.Errorf("unknown transaction must not also match ErrUnavailable: %v", err)
		}
	})

	t.Run("OtherRPCError", func(t *testing.T) {
		server := httptest.NewServer(rpcHandler(t, "", "internal node failure"))
		defer server.Close()

		client := newTestClient(server.URL)
		defer client.Close()

		_, err := client.ResolveCheckpoint(context.Background(), txID)
		expectKind(t, err, proof.KindUnavailable)
	})

	t.Run("NullResult", func(t *testing.T) {
		server := httptest.NewServer(rpcHandler(t, "null", ""))
		defer server.Close()

		client := newTestClient(server.URL)
		defer client.Close()

		_, err := client.ResolveCheckpoint(context.Background(), txID)
		expectKind(t, err, proof.KindNotFound)
	})

	t.Run("ServerError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		defer client.Close()

		_, err := client.ResolveCheckpoint(context.Background(), txID)
		expectKind(t, err, proof.KindUnavailable)
	})

	t.Run("ConnectionRefused", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		client := newTestClient(url, ledger.WithTimeout(time.Second))
		defer client.Close()

		_, err := client.ResolveCheckpoint(context.Background(), txID)
		expectKind(t, err, proof.KindUnavailable)
	})
}

// ====================================================================================
// FetchCheckpoint
// ====================================================================================

func TestFetchCheckpoint(t *testing.T) {
	recA := ledgertest.NewRecord("fetch-a")
	recB := ledgertest.NewRecord("fetch-b", ledgertest.WithEvents(checkpoint.Event{Type: "0x2::coin::Mint", Contents: []byte{1, 2, 3}}))
	data := ledgertest.BuildCheckpoint(4, 42, recA, recB)

	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/rest/checkpoints/42/full" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if ua := r.Header.Get("User-Agent"); ua != "lightproof-test" {
				t.Errorf("unexpected user agent: %s", ua)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(data)
		}))
		defer server.Close()

		client := newTestClient(server.URL, ledger.WithUserAgent("lightproof-test"))
		defer client.Close()

		got, err := client.FetchCheckpoint(context.Background(), 42)
		if err != nil {
			t.Fatalf("FetchCheckpoint failed: %v", err)
		}
		if got.Summary.SequenceNumber != 42 {
			t.Errorf("expected sequence 42, got %d", got.Summary.SequenceNumber)
		}
		if len(got.Transactions) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(got.Transactions))
		}

		// digests must survive the JSON transport unchanged
		if _, err := proof.CrossValidate(ledgertest.TxID(recB), got); err != nil {
			t.Errorf("decoded checkpoint does not validate: %v", err)
		}
	})

	t.Run("CustomRESTURL", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v2/checkpoints/42/full" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode(data)
		}))
		defer server.Close()

		client := newTestClient("http://rpc.invalid", ledger.WithRESTURL(server.URL+"/v2/"))
		defer client.Close()

		if _, err := client.FetchCheckpoint(context.Background(), 42); err != nil {
			t.Fatalf("FetchCheckpoint failed: %v", err)
		}
	})

	statusTests := []struct {
		name   string
		status int
		want   proof.Kind
	}{
		{"NotFound", http.StatusNotFound, proof.KindNotFound},
		{"TooEarly", http.StatusTooEarly, proof.KindUnavailable},
		{"ServiceUnavailable", http.StatusServiceUnavailable, proof.KindUnavailable},
		{"BadGateway", http.StatusBadGateway, proof.KindUnavailable},
	}

	for _, tt := range statusTests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			defer client.Close()

			_, err := client.FetchCheckpoint(context.Background(), 42)
			expectKind(t, err, tt.want)
		})
	}

	t.Run("MalformedBody", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"checkpoint_summary": [`)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		defer client.Close()

		_, err := client.FetchCheckpoint(context.Background(), 42)
		expectKind(t, err, proof.KindUnavailable)
	})
}

// ====================================================================================
// Rate limiting and retries
// ====================================================================================

func TestRetryOnTooManyRequests(t *testing.T) {
	data := ledgertest.BuildCheckpoint(1, 9, ledgertest.NewRecord("retry"))

	t.Run("RetriesThenSucceeds", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			json.NewEncoder(w).Encode(data)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		defer client.Close()

		if _, err := client.FetchCheckpoint(context.Background(), 9); err != nil {
			t.Fatalf("FetchCheckpoint failed: %v", err)
		}
		if calls.Load() != 2 {
			t.Errorf("expected 2 calls, got %d", calls.Load())
		}
	})

	t.Run("GivesUp", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := newTestClient(server.URL, ledger.WithRetry(2, time.Second))
		defer client.Close()

		_, err := client.FetchCheckpoint(context.Background(), 9)
		expectKind(t, err, proof.KindUnavailable)
		if calls.Load() != 3 {
			t.Errorf("expected 3 calls, got %d", calls.Load())
		}
	})

	t.Run("RetryAfterTooLong", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Header().Set("Retry-After", "3600")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		defer client.Close()

		_, err := client.FetchCheckpoint(context.Background(), 9)
		expectKind(t, err, proof.KindUnavailable)
		if calls.Load() != 1 {
			t.Errorf("expected a single call, got %d", calls.Load())
		}
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.FetchCheckpoint(ctx, 9)
		expectKind(t, err, proof.KindUnavailable)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded in chain, got %v", err)
		}
	})
}

// TestRateLimiter tests the token bucket
func TestRateLimiter(t *testing.T) {
	t.Run("InitialBurst", func(t *testing.T) {
		rl := ledger.NewRateLimiter(5, time.Hour)
		defer rl.Stop()

		ctx := context.Background()
		for i := 0; i < 5; i++ {
			if err := rl.Wait(ctx); err != nil {
				t.Fatalf("wait %d failed: %v", i, err)
			}
		}
	})

	t.Run("BlocksWhenEmpty", func(t *testing.T) {
		rl := ledger.NewRateLimiter(1, time.Hour)
		defer rl.Stop()

		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("first wait failed: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("StopTwice", func(t *testing.T) {
		rl := ledger.NewRateLimiter(0, time.Second)
		rl.Stop()
		rl.Stop()

		if err := rl.Wait(context.Background()); !errors.Is(err, ledger.ErrLimiterStopped) {
			t.Errorf("expected ErrLimiterStopped, got %v", err)
		}
	})

	t.Run("StopReleasesWaiter", func(t *testing.T) {
		rl := ledger.NewRateLimiter(1, time.Hour)
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("first wait failed: %v", err)
		}

		done := make(chan error, 1)
		go func() { done <- rl.Wait(context.Background()) }()

		time.Sleep(10 * time.Millisecond)
		rl.Stop()

		select {
		case err := <-done:
			if !errors.Is(err, ledger.ErrLimiterStopped) {
				t.Errorf("expected ErrLimiterStopped, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("waiter was not released by Stop")
		}
	})
}

func TestClientStats(t *testing.T) {
	client := newTestClient("http://node.example/")
	defer client.Close()

	if got := client.GetBaseURL(); got != "http://node.example" {
		t.Errorf("unexpected base URL: %s", got)
	}

	stats := client.GetStats()
	if rest, _ := stats["rest_url"].(string); !strings.HasSuffix(rest, "/rest") {
		t.Errorf("unexpected rest url: %v", stats["rest_url"])
	}
}

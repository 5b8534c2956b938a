package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testRequest() Request {
	return Request{
		SpinID: "spin-1",
		Player: "alice",
		Bet:    decimal.NewFromInt(10),
		Win:    decimal.NewFromInt(50),
	}
}

func TestNet(t *testing.T) {
	req := testRequest()
	if !req.Net().Equal(decimal.NewFromInt(40)) {
		t.Errorf("paid spin net = %s", req.Net())
	}
	req.FreeSpin = true
	if !req.Net().Equal(decimal.NewFromInt(50)) {
		t.Errorf("free spin net = %s", req.Net())
	}
}

func TestSimulated(t *testing.T) {
	r, err := Simulated{}.Settle(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(r.Ref, "sim-") || r.Mode != ModeSimulated {
		t.Errorf("receipt = %+v", r)
	}
	if _, err := (Simulated{}).Settle(context.Background(), Request{}); err == nil {
		t.Error("expected error for missing spin id")
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		mode    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"", Config{}, ModeSimulated, false},
		{ModeSimulated, Config{}, ModeSimulated, false},
		{ModeOnChain, Config{Endpoint: "http://node"}, ModeOnChain, false},
		{ModeOnChain, Config{}, "", true},
		{"ledger", Config{}, "", true},
	}
	for _, tt := range tests {
		s, err := New(tt.mode, tt.cfg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("New(%q) expected error", tt.mode)
			}
			continue
		}
		if err != nil || s.Mode() != tt.want {
			t.Errorf("New(%q) = %v, %v", tt.mode, s, err)
		}
	}
}

func fastClient(url string) *OnChain {
	return NewOnChain(Config{
		Endpoint:       url,
		BaseRetryDelay: time.Millisecond,
		MaxRetryDelay:  2 * time.Millisecond,
	})
}

func TestOnChainSettle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if req.Method != "slots_settle" || req.JSONRPC != "2.0" {
			t.Errorf("request = %+v", req)
		}
		params := req.Params[0].(map[string]any)
		if params["net"] != "40" {
			t.Errorf("net param = %v", params["net"])
		}
		json.NewEncoder(w).Encode(map[string]any{"id": req.ID, "result": map[string]string{"txHash": "0xabc"}})
	}))
	defer server.Close()

	r, err := fastClient(server.URL).Settle(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if r.Ref != "0xabc" || r.Mode != ModeOnChain {
		t.Errorf("receipt = %+v", r)
	}
}

func TestOnChainRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": 1, "result": map[string]string{"txHash": "0xdef"}})
	}))
	defer server.Close()

	r, err := fastClient(server.URL).Settle(context.Background(), testRequest())
	if err != nil {
		t.Fatal(err)
	}
	if r.Ref != "0xdef" || calls.Load() != 3 {
		t.Errorf("ref %s after %d calls", r.Ref, calls.Load())
	}
}

func TestOnChainFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
	}{
		{"client error is final", http.StatusBadRequest, `bad`, 1},
		{"rpc user error is final", http.StatusOK, `{"id":1,"error":{"code":-32602,"message":"invalid params"}}`, 1},
		{"rpc internal error retries", http.StatusOK, `{"id":1,"error":{"code":-32603,"message":"busy"}}`, 4},
		{"server error exhausts retries", http.StatusServiceUnavailable, `down`, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			if _, err := fastClient(server.URL).Settle(context.Background(), testRequest()); err == nil {
				t.Fatal("expected error")
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestOnChainCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewOnChain(Config{Endpoint: server.URL, BaseRetryDelay: time.Hour, MaxRetryDelay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Settle(ctx, testRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

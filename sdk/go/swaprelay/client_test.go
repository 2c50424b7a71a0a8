package swaprelay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSwapPostsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/swaps" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req SwapRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("unexpected body: %v", err)
		}
		if req.Caller != "0xabc" || req.Payload != "0x12aa3caf" {
			t.Errorf("unexpected swap request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(SwapResult{TxID: "tx-1", NetOutput: "495"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	res, err := client.Swap(context.Background(), SwapRequest{Caller: "0xabc", Value: "0", Payload: "0x12aa3caf"})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if res.TxID != "tx-1" || res.NetOutput != "495" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSwapSurfacesRevertReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"ROUTER_CALL_FAILED","message":"router call failed","metadata":{"reason":"slippage"}}`))
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	_, err := client.Swap(context.Background(), SwapRequest{Caller: "0xabc"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Code != "ROUTER_CALL_FAILED" || apiErr.Reason() != "slippage" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestQueriesEncodeParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/prefix/api/v1/settlements":
			if r.URL.Query().Get("limit") != "5" {
				t.Errorf("unexpected limit %q", r.URL.RawQuery)
			}
			_ = json.NewEncoder(w).Encode([]Settlement{{ID: "s-1", ZeroOutput: true}})
		case "/prefix/api/v1/balances":
			q := r.URL.Query()
			if q.Get("address") != "0xabc" || q.Has("asset") {
				t.Errorf("unexpected balance query %q", r.URL.RawQuery)
			}
			_ = json.NewEncoder(w).Encode(Balance{Address: "0xabc", Balance: "7"})
		case "/prefix/api/v1/relay":
			_ = json.NewEncoder(w).Encode(RelayInfo{FeeBps: 30, State: "idle"})
		case "/prefix/api/v1/preflight":
			_, _ = w.Write([]byte(`{"native_input":true,"required":100,"problems":["short"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/prefix", srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	list, err := client.Settlements(ctx, 5)
	if err != nil || len(list) != 1 || !list[0].ZeroOutput {
		t.Fatalf("unexpected settlements %+v, %v", list, err)
	}
	bal, err := client.Balance(ctx, "0xabc", "")
	if err != nil || bal.Balance != "7" {
		t.Fatalf("unexpected balance %+v, %v", bal, err)
	}
	info, err := client.Relay(ctx)
	if err != nil || info.FeeBps != 30 {
		t.Fatalf("unexpected relay info %+v, %v", info, err)
	}
	report, err := client.Preflight(ctx, SwapRequest{Caller: "0xabc"})
	if err != nil || report.Ready() || report.Required.Int64() != 100 {
		t.Fatalf("unexpected report %+v, %v", report, err)
	}
}

func TestPlainTextErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	_, err := client.Relay(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "仅支持 GET" {
		t.Fatalf("unexpected error %v", err)
	}
}

package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// rpcServer answers JSON-RPC requests with handler results.
func rpcServer(t *testing.T, handler func(req rpcRequest) (interface{}, *RPCError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		result, rpcErr := handler(req)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_BlockNumber(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *RPCError) {
		if req.Method != "eth_blockNumber" {
			t.Errorf("expected eth_blockNumber, got %s", req.Method)
		}
		return "0x10", nil
	})
	defer server.Close()

	n, err := NewHTTPClient(server.URL).BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("BlockNumber: %v", err)
	}
	if n != 16 {
		t.Errorf("expected 16, got %d", n)
	}
}

func TestHTTPClient_GetBlock(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *RPCError) {
		if req.Method != "eth_getBlockByNumber" {
			t.Errorf("expected eth_getBlockByNumber, got %s", req.Method)
		}
		if req.Params[0] != "0x64" || req.Params[1] != true {
			t.Errorf("unexpected params %v", req.Params)
		}
		return map[string]interface{}{
			"number":    "0x64",
			"hash":      "0x00000000000000000000000000000000000000000000000000000000000000aa",
			"timestamp": "0x5f5e1000",
			"transactions": []map[string]interface{}{
				{
					"hash":             "0x00000000000000000000000000000000000000000000000000000000000000bb",
					"from":             "0x0000000000000000000000000000000000000001",
					"transactionIndex": "0x2",
				},
			},
		}, nil
	})
	defer server.Close()

	block, err := NewHTTPClient(server.URL).GetBlock(context.Background(), 100)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if block.Number != 100 || block.Timestamp != 0x5f5e1000 {
		t.Errorf("unexpected block %+v", block)
	}
	if len(block.Transactions) != 1 || block.Transactions[0].Index != 2 {
		t.Fatalf("unexpected transactions %+v", block.Transactions)
	}
	if block.Transactions[0].From != common.HexToAddress("0x01") {
		t.Errorf("unexpected from %s", block.Transactions[0].From)
	}
}

func TestHTTPClient_GetLogs(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *RPCError) {
		filter := req.Params[0].(map[string]interface{})
		if filter["fromBlock"] != "0x1" || filter["toBlock"] != "0x2" {
			t.Errorf("unexpected filter %v", filter)
		}
		return []map[string]interface{}{
			{
				"address":          "0x0000000000000000000000000000000000000abc",
				"topics":           []string{"0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1"},
				"data":             "0x",
				"blockNumber":      "0x1",
				"transactionHash":  "0x00000000000000000000000000000000000000000000000000000000000000bb",
				"transactionIndex": "0x0",
				"blockHash":        "0x00000000000000000000000000000000000000000000000000000000000000aa",
				"logIndex":         "0x3",
				"removed":          false,
			},
		}, nil
	})
	defer server.Close()

	logs, err := NewHTTPClient(server.URL).GetLogs(context.Background(), FilterQuery{
		FromBlock: 1,
		ToBlock:   2,
		Addresses: []common.Address{common.HexToAddress("0xabc")},
	})
	if err != nil {
		t.Fatalf("GetLogs: %v", err)
	}
	if len(logs) != 1 || logs[0].Index != 3 || logs[0].BlockNumber != 1 {
		t.Errorf("unexpected logs %+v", logs)
	}
}

func TestHTTPClient_CallReverted(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *RPCError) {
		return nil, &RPCError{Code: 3, Message: "execution reverted"}
	})
	defer server.Close()

	_, err := NewHTTPClient(server.URL).Call(context.Background(), common.HexToAddress("0x01"), []byte{0x01}, 1)
	if !errors.Is(err, ErrReverted) {
		t.Errorf("expected ErrReverted, got %v", err)
	}
}

func TestHTTPClient_CallEmptyResult(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) (interface{}, *RPCError) {
		return "0x", nil
	})
	defer server.Close()

	_, err := NewHTTPClient(server.URL).Call(context.Background(), common.HexToAddress("0x01"), []byte{0x01}, 1)
	if !errors.Is(err, ErrReverted) {
		t.Errorf("expected ErrReverted, got %v", err)
	}
}

func TestHTTPClient_RetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": "0x1"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond), WithMaxDelay(5*time.Millisecond))
	n, err := client.BlockNumber(context.Background())
	if err != nil {
		t.Fatalf("BlockNumber: %v", err)
	}
	if n != 1 || calls.Load() != 3 {
		t.Errorf("expected block 1 after 3 attempts, got %d after %d", n, calls.Load())
	}
}

func TestHTTPClient_MaxRetriesExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(1), WithRetryDelay(time.Millisecond))
	if _, err := client.BlockNumber(context.Background()); err == nil {
		t.Error("expected error after retries")
	}
}

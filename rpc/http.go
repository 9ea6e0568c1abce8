package rpc

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketchain/native/bank"
	"marketchain/native/market"
	"marketchain/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// Server exposes the market engine over JSON-RPC. Every action is executed
// under a single mutex: the engine assumes one serialized state transition at
// a time, with no partial visibility between calls.
type Server struct {
	engine *market.Engine
	ledger *bank.Ledger
	log    *slog.Logger

	mu sync.Mutex
}

// NewServer wires a server around the given engine and host ledger.
func NewServer(engine *market.Engine, ledger *bank.Ledger, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: engine, ledger: ledger, log: log}
}

// Start serves JSON-RPC on / and prometheus metrics on /metrics.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	mux.Handle("/metrics", promhttp.Handler())
	s.log.Info("starting JSON-RPC server", slog.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	started := time.Now()
	recorder := &statusRecorder{ResponseWriter: w}
	s.dispatch(recorder, r, &req)
	outcome := "ok"
	if recorder.failed {
		outcome = "error"
	}
	observability.MarketMetrics().ObserveRequest(req.Method, outcome, time.Since(started))
}

type statusRecorder struct {
	http.ResponseWriter
	failed bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if status >= http.StatusBadRequest {
		r.failed = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "market_post":
		s.handleMarketPost(w, r, req)
	case "market_buy":
		s.handleMarketBuy(w, r, req)
	case "market_reset":
		s.handleMarketReset(w, r, req)
	case "market_takeOrder":
		s.handleMarketTakeOrder(w, r, req)
	case "market_chooseBid":
		s.handleMarketChooseBid(w, r, req)
	case "market_uploadAddress":
		s.handleMarketUploadAddress(w, r, req)
	case "market_confirm":
		s.handleMarketConfirm(w, r, req)
	case "market_disputeBroken":
		s.handleMarketDisputeBroken(w, r, req)
	case "market_disputeUnsatisfied":
		s.handleMarketDisputeUnsatisfied(w, r, req)
	case "market_disputeConfirm":
		s.handleMarketDisputeConfirm(w, r, req)
	case "market_getGoods":
		s.handleMarketQuery(w, req, market.GoodsQuery{})
	case "market_getOrders":
		s.handleMarketQuery(w, req, market.OrdersQuery{})
	case "market_getShippingFees":
		s.handleMarketQuery(w, req, market.ShippingFeesQuery{})
	case "market_getOrderDetail":
		s.handleMarketOrderDetail(w, req)
	case "market_getAddresses":
		s.handleMarketAddresses(w, req)
	case "market_getBalance":
		s.handleMarketQuery(w, req, market.BalanceQuery{})
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}

package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"solstice/native/sale"
	"solstice/native/treasury"
	"solstice/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	requestsPerSec  = 20
	requestBurst    = 40
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
)

// Server exposes the engines over JSON-RPC 2.0. Admin methods additionally
// require the bearer token from SOLSTICE_RPC_TOKEN.
type Server struct {
	sale     *sale.Engine
	treasury *treasury.Engine

	authToken string
	metrics   *observability.SaleMetrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer wires the engines into an RPC server.
func NewServer(saleEngine *sale.Engine, treasuryEngine *treasury.Engine) *Server {
	return &Server{
		sale:      saleEngine,
		treasury:  treasuryEngine,
		authToken: strings.TrimSpace(os.Getenv("SOLSTICE_RPC_TOKEN")),
		metrics:   observability.Metrics(),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Handler returns the root JSON-RPC handler.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

// Start serves JSON-RPC on the given address until the listener fails.
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError carries a JSON-RPC error object.
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
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj})
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) allow(r *http.Request) bool {
	key := clientKey(r)
	s.mu.Lock()
	limiter, ok := s.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSec), requestBurst)
		s.limiters[key] = limiter
	}
	s.mu.Unlock()
	return limiter.Allow()
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "admin token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token"}
	}
	return nil
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	if !s.allow(r) {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", err.Error())
		return
	}
	if req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "jsonrpc version must be 2.0", nil)
		return
	}

	start := time.Now()
	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.dispatch(recorder, r, &req)
	outcome := "ok"
	if recorder.status >= http.StatusBadRequest {
		outcome = "error"
	}
	s.metrics.RPCRequests.WithLabelValues(req.Method, outcome).Inc()
	s.metrics.RPCLatency.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	switch req.Method {
	case "sale_initialize":
		s.handleSaleInitialize(w, r, req)
	case "sale_mintSupply":
		s.handleSaleMintSupply(w, r, req)
	case "sale_purchase":
		s.handleSalePurchase(w, r, req)
	case "sale_purchaseAndVest":
		s.handleSalePurchaseAndVest(w, r, req)
	case "sale_state":
		s.handleSaleState(w, r, req)
	case "sale_currentPhase":
		s.handleSaleCurrentPhase(w, r, req)
	case "vesting_initialize":
		s.handleVestingInitialize(w, r, req)
	case "vesting_recordPurchase":
		s.handleVestingRecordPurchase(w, r, req)
	case "vesting_accrue":
		s.handleVestingAccrue(w, r, req)
	case "vesting_viewRewards":
		s.handleVestingViewRewards(w, r, req)
	case "vesting_claim":
		s.handleVestingClaim(w, r, req)
	case "vesting_participant":
		s.handleVestingParticipant(w, r, req)
	case "referral_set":
		s.handleReferralSet(w, r, req)
	case "referral_credit":
		s.handleReferralCredit(w, r, req)
	case "dist_list":
		s.handleDistributionList(w, r, req)
	case "dist_total":
		s.handleDistributionTotal(w, r, req)
	case "treasury_addBeneficiary":
		s.handleTreasuryAdd(w, r, req)
	case "treasury_removeBeneficiary":
		s.handleTreasuryRemove(w, r, req)
	case "treasury_claim":
		s.handleTreasuryClaim(w, r, req)
	case "treasury_list":
		s.handleTreasuryList(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
	}
}

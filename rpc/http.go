// Package rpc exposes the swap engine over a JSON-RPC 2.0 HTTP endpoint.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"swapd/native/swap"
	"swapd/observability/metrics"
)

const maxRequestBytes = 1 << 20

// JSON-RPC error codes. The standard codes cover transport problems; the
// server range maps the engine's error taxonomy.
const (
	codeParse          = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeNotFound       = -32001
	codeConflict       = -32003
	codeHashlock       = -32004
	codeTimelock       = -32005
	codeChainAdapter   = -32010
	codeInvariant      = -32020
	codeServerError    = -32000
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type handlerFunc func(context.Context, *Request) (any, *Error)

// Server dispatches swap methods over HTTP.
type Server struct {
	engine    *swap.Engine
	log       *slog.Logger
	authToken string
	handlers  map[string]handlerFunc
}

// NewServer constructs the RPC server. An empty authToken disables bearer
// authentication; production deployments set one.
func NewServer(engine *swap.Engine, authToken string) *Server {
	s := &Server{
		engine:    engine,
		log:       slog.Default().With("component", "rpc"),
		authToken: authToken,
	}
	s.handlers = map[string]handlerFunc{
		"swap_create":         s.handleCreate,
		"swap_confirmFunding": s.handleConfirmFunding,
		"swap_fill":           s.handleFill,
		"swap_claim":          s.handleClaim,
		"swap_refund":         s.handleRefund,
		"swap_get":            s.handleGet,
	}
	return s
}

// Router returns the HTTP mux serving the RPC endpoint, health check and
// prometheus metrics.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRPC)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, nil, codeInvalidRequest, "unable to read request body")
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, nil, codeInvalidRequest, "request body too large")
		return
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, codeParse, "invalid JSON payload")
		return
	}
	if req.Method == "" {
		writeError(w, req.ID, codeInvalidRequest, "method must not be empty")
		return
	}
	handler, ok := s.handlers[req.Method]
	if !ok {
		writeError(w, req.ID, codeMethodNotFound, "unknown method "+req.Method)
		return
	}

	start := time.Now()
	result, rpcErr := handler(r.Context(), &req)
	outcome := "ok"
	if rpcErr != nil {
		outcome = "error"
	}
	metrics.ObserveRPC(req.Method, outcome, time.Since(start).Seconds())

	if rpcErr != nil {
		s.log.Warn("rpc request failed", "method", req.Method, "code", rpcErr.Code, "message", rpcErr.Message)
		writeError(w, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}
	writeResult(w, req.ID, result)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	return strings.TrimPrefix(header, prefix) == s.authToken
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}})
}

// engineError maps the engine's error taxonomy onto RPC error codes.
func engineError(err error) *Error {
	code := codeServerError
	switch {
	case errors.Is(err, swap.ErrNotFound), errors.Is(err, swap.ErrFillNotFound):
		code = codeNotFound
	case errors.Is(err, swap.ErrInvalidAmount),
		errors.Is(err, swap.ErrAmountOutOfBounds),
		errors.Is(err, swap.ErrInvalidDirection),
		errors.Is(err, swap.ErrInvalidTimelock),
		errors.Is(err, swap.ErrInvalidOrder):
		code = codeInvalidParams
	case errors.Is(err, swap.ErrDuplicateID),
		errors.Is(err, swap.ErrInvalidStatus),
		errors.Is(err, swap.ErrAlreadyClaimed),
		errors.Is(err, swap.ErrOperationPending),
		errors.Is(err, swap.ErrPartialFillsDisabled),
		errors.Is(err, swap.ErrInsufficientRemaining),
		errors.Is(err, swap.ErrFundingMismatch):
		code = codeConflict
	case errors.Is(err, swap.ErrHashlockMismatch):
		code = codeHashlock
	case errors.Is(err, swap.ErrTimelockExpired), errors.Is(err, swap.ErrTimelockNotExpired):
		code = codeTimelock
	case errors.Is(err, swap.ErrAdapterTimeout), errors.Is(err, swap.ErrAdapterUnavailable):
		code = codeChainAdapter
	case errors.Is(err, swap.ErrInvariant), errors.Is(err, swap.ErrHalted):
		code = codeInvariant
	}
	return &Error{Code: code, Message: err.Error()}
}

// Serve starts an HTTP server on addr with conservative timeouts and blocks
// until it exits.
func (s *Server) Serve(addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return server.ListenAndServe()
}

// Package rpc provides the JSON-RPC HTTP transport of the node.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/stable-net/anvil-polkadot/pkg/api"
)

// Maximum accepted request body.
const maxRequestSize = 16 * 1024 * 1024

// Request represents a JSON-RPC request.
type Request struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response represents a JSON-RPC response. Successful responses always
// carry a result, null included.
type Response struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject represents a JSON-RPC error.
type ErrorObject = api.RPCError

// Options configures the HTTP server.
type Options struct {
	// AllowOrigin is the CORS allowed origin. Empty disables CORS headers.
	AllowOrigin string
	// Registry receives the request metrics. A private registry is used
	// when nil.
	Registry *prometheus.Registry
}

// Server decodes JSON-RPC requests and forwards them to the request
// server over its queue.
type Server struct {
	requests chan<- api.Message
	metrics  *metrics
	handler  http.Handler
}

// NewServer creates a server forwarding requests to the given queue.
func NewServer(requests chan<- api.Message, opts Options) *Server {
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	s := &Server{
		requests: requests,
		metrics:  newMetrics(registry),
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.HandlerFunc(s.serveRPC))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.handler = mux
	if opts.AllowOrigin != "" {
		s.handler = cors.New(cors.Options{
			AllowedOrigins: []string{opts.AllowOrigin},
			AllowedMethods: []string{http.MethodPost, http.MethodGet},
			AllowedHeaders: []string{"*"},
			MaxAge:         600,
		}).Handler(mux)
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err != nil {
		writeJSON(w, errorResponse(nil, api.ErrCodeParseError, "Parse error"))
		return
	}
	body = bytes.TrimSpace(body)

	if len(body) > 0 && body[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			writeJSON(w, errorResponse(nil, api.ErrCodeParseError, "Parse error"))
			return
		}
		if len(batch) == 0 {
			writeJSON(w, errorResponse(nil, api.ErrCodeInvalidRequest, "empty batch"))
			return
		}
		responses := make([]*Response, 0, len(batch))
		for _, raw := range batch {
			responses = append(responses, s.handleRaw(r.Context(), raw))
		}
		writeJSON(w, responses)
		return
	}

	writeJSON(w, s.handleRaw(r.Context(), body))
}

func (s *Server) handleRaw(ctx context.Context, raw json.RawMessage) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, api.ErrCodeParseError, "Parse error")
	}
	if req.Jsonrpc != "2.0" || req.Method == "" {
		return errorResponse(req.ID, api.ErrCodeInvalidRequest, "Invalid request")
	}
	return s.Handle(ctx, &req)
}

// Handle decodes a single request, executes it and builds the response.
func (s *Server) Handle(ctx context.Context, req *Request) *Response {
	ethReq, ok := api.NewRequest(req.Method)
	if !ok {
		s.metrics.observe("unknown", api.ErrCodeMethodNotFound, 0)
		return errorResponse(req.ID, api.ErrCodeMethodNotFound, "Method not found: "+req.Method)
	}
	method := ethReq.Method()

	start := time.Now()
	if err := decodeParams(req.Params, ethReq); err != nil {
		s.metrics.observe(method, api.ErrCodeInvalidParams, time.Since(start))
		return errorResponse(req.ID, api.ErrCodeInvalidParams, err.Error())
	}

	res, err := s.execute(ctx, ethReq)
	if err != nil {
		s.metrics.observe(method, api.ErrCodeInternal, time.Since(start))
		return errorResponse(req.ID, api.ErrCodeInternal, err.Error())
	}
	if res.Error != nil {
		rpcErr := res.Error.RPCError()
		s.metrics.observe(method, rpcErr.Code, time.Since(start))
		return &Response{Jsonrpc: "2.0", ID: req.ID, Error: rpcErr}
	}

	result, err := json.Marshal(res.Result)
	if err != nil {
		log.Error("Failed to encode result", "method", method, "err", err)
		s.metrics.observe(method, api.ErrCodeInternal, time.Since(start))
		return errorResponse(req.ID, api.ErrCodeInternal, "failed to encode result")
	}
	s.metrics.observe(method, 0, time.Since(start))
	return &Response{Jsonrpc: "2.0", ID: req.ID, Result: result}
}

// execute hands the request to the request server and waits for its reply.
func (s *Server) execute(ctx context.Context, req api.EthRequest) (api.ResponseResult, error) {
	reply := make(chan api.ResponseResult, 1)
	select {
	case s.requests <- api.Message{Request: req, Reply: reply}:
	case <-ctx.Done():
		return api.ResponseResult{}, ctx.Err()
	}

	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return api.ResponseResult{}, ctx.Err()
	}
}

func errorResponse(id json.RawMessage, code int, msg string) *Response {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &Response{
		Jsonrpc: "2.0",
		ID:      id,
		Error:   &ErrorObject{Code: code, Message: msg},
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write response", "err", err)
	}
}

// ListenAndServe serves the handler on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		log.Info("HTTP server stopped", "addr", addr)
		return nil
	}
}

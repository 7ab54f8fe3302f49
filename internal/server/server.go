// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KangBTC/blockchain-AI-Analyzer/internal/metrics"
	"github.com/KangBTC/blockchain-AI-Analyzer/internal/pipeline"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

// Runner is the pipeline surface the server needs. Satisfied by
// *pipeline.Service; tests provide a mock.
type Runner interface {
	Run(ctx context.Context, address, chains string, limit int) (*pipeline.Result, error)
	Chat(ctx context.Context, address, question string) (string, error)
	Report(ctx context.Context, address string) (string, error)
}

// Server provides the analysis HTTP API plus health and metrics
// endpoints.
type Server struct {
	runner        Runner
	defaultChains string
	defaultLimit  int
	logger        *slog.Logger
}

func New(runner Runner, defaultChains string, defaultLimit int, logger *slog.Logger) *Server {
	return &Server{
		runner:        runner,
		defaultChains: defaultChains,
		defaultLimit:  defaultLimit,
		logger:        logger.With("component", "server"),
	}
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analyses", s.instrument("analyses", s.handleRunAnalysis))
	mux.HandleFunc("GET /v1/reports/{address}", s.instrument("reports", s.handleGetReport))
	mux.HandleFunc("POST /v1/chat", s.instrument("chat", s.handleChat))
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// instrument records request counts and latency per route.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type runAnalysisRequest struct {
	Address string `json:"address"`
	Chains  string `json:"chains,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type runAnalysisResponse struct {
	RunID        string `json:"runId"`
	Address      string `json:"address"`
	Transactions int    `json:"transactions"`
	Report       string `json:"report"`
}

func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	var req runAnalysisRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Address == "" {
		http.Error(w, `{"error":"address is required"}`, http.StatusBadRequest)
		return
	}

	chains := req.Chains
	if chains == "" {
		chains = s.defaultChains
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	result, err := s.runner.Run(r.Context(), req.Address, chains, limit)
	if err != nil {
		s.logger.Error("analysis run failed", "address", req.Address, "error", err)
		http.Error(w, `{"error":"analysis failed"}`, http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, runAnalysisResponse{
		RunID:        result.RunID,
		Address:      result.Address,
		Transactions: len(result.Details),
		Report:       result.Report,
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	if address == "" {
		http.Error(w, `{"error":"address is required"}`, http.StatusBadRequest)
		return
	}

	report, err := s.runner.Report(r.Context(), address)
	if err != nil {
		s.logger.Error("report lookup failed", "address", address, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if report == "" {
		http.Error(w, `{"error":"no report for this address"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"address": address,
		"report":  report,
	})
}

type chatRequest struct {
	Address  string `json:"address"`
	Question string `json:"question"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Address == "" || req.Question == "" {
		http.Error(w, `{"error":"address and question are required"}`, http.StatusBadRequest)
		return
	}

	answer, err := s.runner.Chat(r.Context(), req.Address, req.Question)
	if err != nil {
		s.logger.Error("chat failed", "address", req.Address, "error", err)
		http.Error(w, `{"error":"chat failed"}`, http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON writes v as JSON with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cwygoda/autoapply/internal/adapter/inbox"
	"github.com/cwygoda/autoapply/internal/domain"
)

const (
	maxTimestampSkew = 5 * time.Minute
	maxBodyBytes     = 1 << 20
)

// Server exposes job state and accepts job links over HTTP.
type Server struct {
	store   *domain.JobStore
	inbox   *inbox.Inbox
	mux     *http.ServeMux
	server  *http.Server
	secret  string
	trigger func()
	logger  *slog.Logger
	now     func() time.Time
}

// NewServer creates a new HTTP server. An empty secret disables webhook
// signature checks.
func NewServer(store *domain.JobStore, box *inbox.Inbox, addr string, secret string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:  store,
		inbox:  box,
		mux:    http.NewServeMux(),
		secret: secret,
		logger: logger,
		now:    time.Now,
	}
	s.routes()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// OnEnqueue registers fn to be called after a webhook queues a new job.
func (s *Server) OnEnqueue(fn func()) {
	s.trigger = fn
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /webhook", s.handleWebhook)
	s.mux.HandleFunc("GET /jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /jobs/record", s.handleGetJob)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// webhookRequest is the request body for POST /webhook.
type webhookRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type webhookResponse struct {
	ID     string `json:"id"`
	Queued bool   `json:"queued"`
	Status string `json:"status,omitempty"`
}

// jobResponse is the JSON form of a job record.
type jobResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Status      string         `json:"status"`
	Explanation string         `json:"explanation,omitempty"`
	Attempts    int            `json:"attempts"`
	LastUpdated string         `json:"last_updated"`
	History     []historyEntry `json:"history,omitempty"`
}

type historyEntry struct {
	Timestamp   string `json:"timestamp"`
	Status      string `json:"status"`
	Explanation string `json:"explanation,omitempty"`
}

// errorResponse is the JSON error response.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	if s.secret != "" {
		if err := s.verifySignature(r, body); err != nil {
			s.logger.Warn("webhook.unauthorized", "error", err, "remote", r.RemoteAddr)
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
	}

	var req webhookRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	id := strings.TrimSpace(req.URL)
	if rec, ok := s.store.Get(id); ok && rec.Status().IsTerminal() {
		s.writeJSON(w, http.StatusOK, webhookResponse{ID: id, Status: string(rec.Status())})
		return
	}

	queued, err := s.inbox.Push(id, req.Title)
	if err != nil {
		if errors.Is(err, inbox.ErrInvalidURL) {
			s.writeError(w, http.StatusBadRequest, "invalid URL")
			return
		}
		s.logger.Error("webhook.enqueue_error", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info("webhook.accepted", "job_id", id, "queued", queued)
	if queued && s.trigger != nil {
		s.trigger()
	}
	s.writeJSON(w, http.StatusAccepted, webhookResponse{ID: id, Queued: queued})
}

func (s *Server) verifySignature(r *http.Request, body []byte) error {
	timestamp := r.Header.Get("X-Timestamp")
	if timestamp == "" {
		return fmt.Errorf("missing X-Timestamp header")
	}

	ts, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return fmt.Errorf("invalid X-Timestamp: must be ISO8601/RFC3339 format")
	}

	skew := s.now().Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > maxTimestampSkew {
		return fmt.Errorf("X-Timestamp too far from current time (skew: %v, max: %v)", skew.Truncate(time.Second), maxTimestampSkew)
	}

	signature := r.Header.Get("X-Signature")
	if signature == "" {
		return fmt.Errorf("missing X-Signature header")
	}

	expected := Sign(timestamp, body, s.secret)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

// Sign returns hex(SHA256("${timestamp}\n${body}\n${secret}")).
func Sign(timestamp string, body []byte, secret string) string {
	payload := fmt.Sprintf("%s\n%s\n%s", timestamp, string(body), secret)
	hash := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(hash[:])
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var filter domain.JobStatus
	if q := r.URL.Query().Get("status"); q != "" {
		st, ok := domain.ParseStatus(q)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status")
			return
		}
		filter = st
	}

	out := []jobResponse{}
	for _, rec := range s.store.List() {
		if filter != "" && rec.Status() != filter {
			continue
		}
		out = append(out, recordToResponse(rec, false))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Lookup(r.URL.Query().Get("id"))
	switch {
	case errors.Is(err, domain.ErrEmptyJobID):
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	case errors.Is(err, domain.ErrJobNotFound):
		s.writeError(w, http.StatusNotFound, domain.ErrJobNotFound.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, recordToResponse(rec, true))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func recordToResponse(rec domain.JobRecord, withHistory bool) jobResponse {
	resp := jobResponse{
		ID:          rec.ID,
		Title:       rec.Title,
		Status:      string(rec.Status()),
		Explanation: rec.Explanation(),
		Attempts:    rec.Attempts(),
		LastUpdated: rec.LastUpdated().UTC().Format(time.RFC3339),
	}
	if withHistory {
		for _, h := range rec.History {
			resp.History = append(resp.History, historyEntry{
				Timestamp:   h.Timestamp.UTC().Format(time.RFC3339),
				Status:      string(h.Status),
				Explanation: h.Explanation,
			})
		}
	}
	return resp
}

// statusRecorder captures the response code for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ServeHTTP routes the request and writes one access log line.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := uuid.New().String()
	w.Header().Set("X-Request-ID", reqID)
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	s.mux.ServeHTTP(rec, r)

	s.logger.Debug("http.request",
		"req_id", reqID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Addr returns the server address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Port extracts the port from the address.
func (s *Server) Port() int {
	addr := s.server.Addr
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		port, _ := strconv.Atoi(addr[idx+1:])
		return port
	}
	return 0
}

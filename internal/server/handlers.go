package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/reflexgate/reflexgate/internal/apperr"
	"github.com/reflexgate/reflexgate/internal/pipeline"
)

// readyProbeTimeout bounds the backing-store ping on /ready.
const readyProbeTimeout = 2 * time.Second

// handleProcess runs one text through the pipeline and writes the
// verdict. Blocked verdicts keep the same body shape under a 403.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	requestID := pipeline.RequestIDFrom(r.Context())

	ctx := r.Context()
	if timeout := s.cfg.Server.RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
	var req pipeline.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, requestID, apperr.Validation("request body is not valid JSON: %v", err))
		return
	}
	// source_address in the body is for trusted forwarders processing on
	// behalf of their own clients; everyone else is judged by connection.
	if req.SourceAddress == "" {
		req.SourceAddress = sourceAddr(r)
	}

	resp, aerr := s.pipe.Process(ctx, req)
	if aerr != nil {
		s.writeError(w, requestID, aerr)
		return
	}

	status := http.StatusOK
	if resp.Status == pipeline.StatusBlocked {
		status = http.StatusForbidden
	}
	writeJSON(w, status, resp)
}

// handleHealth reports process liveness. It stays green during backing
// store outages; that is what /ready is for.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady reports whether the backing store answers. Load balancers
// use this to route around an instance whose Redis is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyProbeTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleWebSocket hands live-event subscribers to the hub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r)
}

func (s *Server) writeError(w http.ResponseWriter, requestID string, aerr *apperr.Error) {
	if aerr.Kind == apperr.KindRateLimit {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(aerr.RetryAfter)))
	}
	if aerr.Severe() {
		s.log.WithRequestID(requestID).Error("Request failed", zap.Error(aerr))
	}
	writeJSON(w, aerr.HTTPStatus(), aerr.ToResponse(requestID))
}

// retryAfterSeconds rounds the hint up to whole seconds so a client that
// honors the header never retries early.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

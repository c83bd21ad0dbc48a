package demo

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
	"github.com/shadowtrace/shadowtrace-cli/internal/compliance"
	"github.com/shadowtrace/shadowtrace-cli/internal/discovery"
)

const maxRequestBytes = 1 << 20

// noReport is the body of the report route for targets never scanned.
type noReport struct {
	Target        string `json:"target"`
	Status        string `json:"status"`
	DPDPCompliant bool   `json:"dpdp_compliant"`
}

// errorResponse mirrors the validation error shape of the scan API.
type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"message": "ShadowTrace Backend is Live",
	})
}

// handleScan answers a scan request. The email slot is preferred and the
// identifier is matched case-insensitively.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "failed to read request body"})
		return
	}
	var req schemas.ScanRequest
	if !json.Valid(body) {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "request body is not valid JSON"})
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: fmt.Sprintf("invalid scan request: %v", err)})
		return
	}
	identifier := normalizeIdentifier(req.Token())
	if identifier == "" {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "target_email or target_username is required"})
		return
	}

	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		select {
		case <-timer.C:
		case <-r.Context().Done():
			timer.Stop()
			return
		}
	}

	resp := s.respond(identifier)
	s.store(identifier, resp)
	s.logger.Info("Scan served",
		zap.String("identifier", identifier),
		zap.Int("exposures", len(resp.Exposures)),
		zap.Int("risk_score", resp.RiskScore))
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	if resp, ok := s.Report(target); ok {
		s.writeJSON(w, http.StatusOK, resp)
		return
	}
	s.writeJSON(w, http.StatusOK, noReport{Target: target, Status: NoReportStatus})
}

// handleDownload renders the removal requests for the last response served for target.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	resp, ok := s.Report(target)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Detail: NoReportStatus})
		return
	}

	result := discovery.Normalize(resp, target)
	requests := compliance.RemovalRequestsByPlatform(target, result.Exposures, time.Now())
	letters := make([]string, 0, len(requests))
	for _, req := range requests {
		letter, err := req.Render()
		if err != nil {
			s.logger.Warn("Skipping removal request", zap.String("platform", req.Company), zap.Error(err))
			continue
		}
		letters = append(letters, letter)
	}
	if len(letters) == 0 {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Detail: "no exposures to request removal for"})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "dpdp-removal-requests.txt"))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, strings.Join(letters, "\n----\n\n"))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/alejandroruanova/phoneclean-service/internal/core/domain"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/artifacts"
	"github.com/alejandroruanova/phoneclean-service/internal/core/services/phoneclean"
	apperrors "github.com/alejandroruanova/phoneclean-service/internal/pkg/errors"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead leaves room for form boundaries around the file
const multipartOverhead = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	deps := make(map[string]interface{}, len(s.health))
	for name, reporter := range s.health {
		h := reporter.Health(r.Context())
		if h["status"] != "up" {
			status = "degraded"
		}
		deps[name] = h
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       status,
		"service":      "PhoneClean API",
		"backend":      s.config.Backend,
		"dependencies": deps,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes+multipartOverhead)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, apperrors.FileTooLarge(s.config.MaxUploadBytes/(1024*1024)))
			return
		}
		s.respondError(w, r, apperrors.BadRequest("no file provided, send it in the 'file' form field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, apperrors.BadRequest("could not read uploaded file"))
		return
	}
	resp, err := s.service.Upload(r.Context(), header.Filename, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	// Switches omitted from the body keep their defaults
	req := phoneclean.CleanRequest{CleaningOptions: domain.DefaultCleaningOptions()}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, apperrors.BadRequest("invalid JSON body"))
		return
	}
	if req.SessionID == "" {
		s.respondError(w, r, apperrors.BadRequest("session_id is required"))
		return
	}

	resp, err := s.service.Clean(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.service.Download(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeArtifact(w, artifact)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.service.Report(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeArtifact(w, artifact)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	runs, err := s.service.History(r.Context(), sessionID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"runs":       runs,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Evict(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeArtifact(w http.ResponseWriter, artifact *artifacts.Artifact) {
	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", artifact.Filename, url.PathEscape(artifact.Filename)))
	w.Header().Set("Content-Length", fmt.Sprint(artifact.Size()))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(artifact.Data); err != nil {
		s.logger.Warn("failed to write artifact",
			slog.String("filename", artifact.Filename),
			slog.Any("error", err))
	}
}

// writeJSON encodes v as JSON with the given status
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", slog.Any("error", err))
	}
}

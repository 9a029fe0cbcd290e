package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/alejandroruanova/phoneclean-service/internal/pkg/errors"
	"github.com/alejandroruanova/phoneclean-service/internal/pkg/logger"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   apperrors.ErrorCode    `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// respondError maps err to its AppError status and message. Causes of
// internal errors are logged and never returned.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			appErr = apperrors.Timeout("request", err)
		case errors.Is(err, context.Canceled):
			appErr = apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "request cancelled", 499)
		default:
			appErr = apperrors.InternalWrap(err, "something went wrong, please try again")
		}
	}

	log := logger.FromContext(r.Context())
	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", appErr.StatusCode),
		slog.String("code", string(appErr.Code)),
		slog.Any("error", err),
	}
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error("request failed", attrs...)
	} else {
		log.Warn("request rejected", attrs...)
	}

	writeJSON(w, appErr.StatusCode, ErrorResponse{
		Error:   appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

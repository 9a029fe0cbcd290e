package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code for each error type
type ErrorCode string

const (
	// General errors
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
	ErrCodeBadRequest ErrorCode = "BAD_REQUEST"
	ErrCodeTimeout    ErrorCode = "TIMEOUT"

	// Ingestion errors
	ErrCodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCodeCorruptFile       ErrorCode = "CORRUPT_FILE"
	ErrCodeFileTooLarge      ErrorCode = "FILE_TOO_LARGE"

	// Session access errors
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeSessionBusy     ErrorCode = "SESSION_BUSY"

	// Clean request validation errors
	ErrCodeNoColumnsSelected ErrorCode = "NO_COLUMNS_SELECTED"
	ErrCodeUnknownColumn     ErrorCode = "UNKNOWN_COLUMN"

	// Artifact errors
	ErrCodeNoResult ErrorCode = "NO_RESULT"
)

// Sentinels for errors.Is checks. Matching is by code, so any AppError
// carrying the same code satisfies errors.Is(err, ErrSessionNotFound).
var (
	ErrUnsupportedFormat = &AppError{Code: ErrCodeUnsupportedFormat}
	ErrCorruptFile       = &AppError{Code: ErrCodeCorruptFile}
	ErrFileTooLarge      = &AppError{Code: ErrCodeFileTooLarge}
	ErrSessionNotFound   = &AppError{Code: ErrCodeSessionNotFound}
	ErrSessionBusy       = &AppError{Code: ErrCodeSessionBusy}
	ErrNoColumnsSelected = &AppError{Code: ErrCodeNoColumnsSelected}
	ErrUnknownColumn     = &AppError{Code: ErrCodeUnknownColumn}
	ErrNoResult          = &AppError{Code: ErrCodeNoResult}
)

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Err        error                  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails adds additional context to the error
func (e *AppError) WithDetails(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an existing error with AppError context
func Wrap(err error, code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Common error constructors

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message, http.StatusInternalServerError)
}

func InternalWrap(err error, message string) *AppError {
	return Wrap(err, ErrCodeInternal, message, http.StatusInternalServerError)
}

func BadRequest(message string) *AppError {
	return New(ErrCodeBadRequest, message, http.StatusBadRequest)
}

func Timeout(operation string, err error) *AppError {
	return Wrap(err, ErrCodeTimeout,
		fmt.Sprintf("%s took too long, try a smaller file", operation),
		http.StatusGatewayTimeout)
}

// Ingestion errors

func UnsupportedFormat(format string) *AppError {
	return New(ErrCodeUnsupportedFormat,
		fmt.Sprintf("unsupported file type '%s', please upload a .xlsx or .csv file", format),
		http.StatusBadRequest)
}

func CorruptFile(message string, err error) *AppError {
	return Wrap(err, ErrCodeCorruptFile, message, http.StatusBadRequest)
}

func FileTooLarge(maxSizeMB int64) *AppError {
	return New(ErrCodeFileTooLarge,
		fmt.Sprintf("file size exceeds maximum allowed size of %d MB", maxSizeMB),
		http.StatusRequestEntityTooLarge)
}

// Session errors

func SessionNotFound(sessionID string) *AppError {
	return New(ErrCodeSessionNotFound,
		"session not found, please re-upload your file",
		http.StatusNotFound).WithDetails("session_id", sessionID)
}

func SessionBusy(sessionID string) *AppError {
	return New(ErrCodeSessionBusy,
		"another operation is running on this session, please retry shortly",
		http.StatusConflict).WithDetails("session_id", sessionID)
}

// Clean request errors

func NoColumnsSelected() *AppError {
	return New(ErrCodeNoColumnsSelected,
		"please select at least one phone column",
		http.StatusBadRequest)
}

func UnknownColumn(column string) *AppError {
	return New(ErrCodeUnknownColumn,
		fmt.Sprintf("column '%s' not found in file", column),
		http.StatusBadRequest).WithDetails("column", column)
}

// Artifact errors

func NoResult(sessionID string) *AppError {
	return New(ErrCodeNoResult,
		"no cleaning result yet, run a clean before downloading",
		http.StatusNotFound).WithDetails("session_id", sessionID)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error chain
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// HasCode reports whether err carries the given code anywhere in its chain
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Code == code
}

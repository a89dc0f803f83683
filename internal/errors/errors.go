// Package errors provides custom error types for the Tradewarden API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// General errors.
var (
	ErrUnauthorized   = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Agent errors.
var (
	ErrAgentNotFound   = &AppError{Code: "AGENT_NOT_FOUND", Message: "Agent not found", StatusCode: http.StatusNotFound}
	ErrAgentTerminated = &AppError{Code: "AGENT_TERMINATED", Message: "Agent is already terminated", StatusCode: http.StatusConflict}
)

// Trade validation errors.
var (
	ErrSymbolNotAllowed     = &AppError{Code: "SYMBOL_NOT_ALLOWED", Message: "Symbol is not in the agent's allowed universe", StatusCode: http.StatusBadRequest}
	ErrUnknownSymbol        = &AppError{Code: "UNKNOWN_SYMBOL", Message: "Symbol is not recognized", StatusCode: http.StatusBadRequest}
	ErrInsufficientPosition = &AppError{Code: "INSUFFICIENT_POSITION", Message: "Insufficient position quantity for this sale", StatusCode: http.StatusBadRequest}
	ErrInsufficientCash     = &AppError{Code: "INSUFFICIENT_CASH", Message: "Insufficient cash for this purchase", StatusCode: http.StatusBadRequest}
	ErrTradeNotFound        = &AppError{Code: "TRADE_NOT_FOUND", Message: "Trade not found", StatusCode: http.StatusNotFound}
)

// Gate errors.
var (
	ErrBudgetExceeded = &AppError{Code: "BUDGET_EXCEEDED", Message: "Trade exceeds the agent's monthly budget", StatusCode: http.StatusUnprocessableEntity}
	ErrRiskRejected   = &AppError{Code: "RISK_REJECTED", Message: "Trade rejected by risk controls", StatusCode: http.StatusUnprocessableEntity}
)

// Approval errors.
var (
	ErrApprovalNotFound        = &AppError{Code: "APPROVAL_NOT_FOUND", Message: "Approval request not found", StatusCode: http.StatusNotFound}
	ErrApprovalAlreadyResolved = &AppError{Code: "APPROVAL_ALREADY_RESOLVED", Message: "Approval request is already resolved", StatusCode: http.StatusConflict}
	ErrApprovalExpired         = &AppError{Code: "APPROVAL_EXPIRED", Message: "Approval request has expired", StatusCode: http.StatusGone}
	ErrApprovalStale           = &AppError{Code: "APPROVAL_STALE", Message: "Approved trade is stale and can no longer execute", StatusCode: http.StatusConflict}
)

// Execution and collaborator errors.
var (
	ErrExecutionFailed    = &AppError{Code: "EXECUTION_FAILED", Message: "Order execution failed", StatusCode: http.StatusBadGateway}
	ErrExternalService    = &AppError{Code: "EXTERNAL_SERVICE_ERROR", Message: "An external service is unavailable", StatusCode: http.StatusBadGateway}
	ErrInvariantViolation = &AppError{Code: "INVARIANT_VIOLATION", Message: "Portfolio invariant violated", StatusCode: http.StatusInternalServerError}
)

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/ledger"
	"github.com/MJE43/casino-settle-go/internal/promo"
	"github.com/MJE43/casino-settle-go/internal/settlement"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]interface{}
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error text
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	eng := EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if len(eb.context) > 0 {
		eng.Context = eb.context
	}
	return eng
}

// classify maps a domain error onto an HTTP status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusPaymentRequired, ErrTypeInsufficientBalance
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, ErrTypeInvalidAmount
	case errors.Is(err, settlement.ErrUnknownGame):
		return http.StatusNotFound, ErrTypeGameNotFound
	case errors.Is(err, games.ErrInvalidSelection):
		return http.StatusBadRequest, ErrTypeInvalidSelection
	case errors.Is(err, settlement.ErrRoundAlreadyInProgress):
		return http.StatusConflict, ErrTypeRoundInProgress
	case errors.Is(err, settlement.ErrRoundNotActive):
		return http.StatusConflict, ErrTypeRoundNotActive
	case errors.Is(err, settlement.ErrCooldownActive):
		return http.StatusTooManyRequests, ErrTypeCooldownActive
	case errors.Is(err, promo.ErrEmptyCode):
		return http.StatusBadRequest, ErrTypeValidation
	case errors.Is(err, promo.ErrUnknownCode):
		return http.StatusNotFound, ErrTypePromoUnknown
	case errors.Is(err, promo.ErrAlreadyRedeemed):
		return http.StatusConflict, ErrTypePromoRedeemed
	case errors.Is(err, promo.ErrExhausted):
		return http.StatusGone, ErrTypePromoExhaust
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, ErrTypeNotFound
	case errors.Is(err, ledger.ErrPersistence):
		return http.StatusServiceUnavailable, ErrTypePersistence
	default:
		return http.StatusInternalServerError, ErrTypeInternal
	}
}

// playerMessage picks the text shown to the player.
func playerMessage(err error) string {
	switch {
	case errors.Is(err, promo.ErrEmptyCode):
		return "Enter a promo code."
	case errors.Is(err, promo.ErrUnknownCode):
		return "That promo code is not valid."
	case errors.Is(err, promo.ErrAlreadyRedeemed):
		return "You have already redeemed this code."
	case errors.Is(err, promo.ErrExhausted):
		return "This code has reached its redemption limit."
	case errors.Is(err, ledger.ErrNotFound):
		return "Not found."
	}
	return settlement.Message(err)
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError converts err into a structured response.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetReqID(r.Context())

	var engineErr EngineError
	status := http.StatusInternalServerError
	if errors.As(err, &engineErr) {
		status = statusFor(engineErr.Type)
	} else {
		var errType string
		status, errType = classify(err)
		b := NewError(errType, playerMessage(err)).
			WithRequestID(requestID).
			WithContext("path", r.URL.Path)
		if status >= http.StatusInternalServerError {
			b.WithCause(err)
		}
		var cd *settlement.CooldownError
		if errors.As(err, &cd) {
			b.WithContext("retry_after_seconds", int(cd.Remaining.Round(time.Second)/time.Second))
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cd.Remaining.Round(time.Second)/time.Second)))
		}
		engineErr = b.Build()
	}

	eh.logError(r, engineErr, status, err)
	eh.writeErrorResponse(w, status, engineErr)
}

// HandleDecodeError reports a malformed JSON body.
func (eh *ErrorHandler) HandleDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	engineErr := NewError(ErrTypeValidation, "Invalid JSON format").
		WithRequestID(middleware.GetReqID(r.Context())).
		WithCause(err).
		Build()
	eh.logError(r, engineErr, http.StatusBadRequest, err)
	eh.writeErrorResponse(w, http.StatusBadRequest, engineErr)
}

// HandleValidationError reports failed struct validation per field.
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	b := NewError(ErrTypeValidation, "Validation failed").
		WithRequestID(middleware.GetReqID(r.Context()))

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = describeField(fe)
		}
		b.WithContext("fields", fields)
	} else {
		b.WithCause(err)
	}

	engineErr := b.Build()
	eh.logError(r, engineErr, http.StatusBadRequest, err)
	eh.writeErrorResponse(w, http.StatusBadRequest, engineErr)
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s", fe.Param())
	default:
		return "Invalid value"
	}
}

func statusFor(errType string) int {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidSelection, ErrTypeInvalidAmount:
		return http.StatusBadRequest
	case ErrTypeInsufficientBalance:
		return http.StatusPaymentRequired
	case ErrTypeNotFound, ErrTypeGameNotFound, ErrTypePromoUnknown:
		return http.StatusNotFound
	case ErrTypeRoundInProgress, ErrTypeRoundNotActive, ErrTypePromoRedeemed, ErrTypeScript:
		return http.StatusConflict
	case ErrTypePromoExhaust:
		return http.StatusGone
	case ErrTypeCooldownActive:
		return http.StatusTooManyRequests
	case ErrTypeServiceUnavailable, ErrTypePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// logError logs client errors at warn and server errors at error.
func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int, cause error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := []any{
		"type", engineErr.Type,
		"category", GetErrorCategory(engineErr.Type),
		"status", status,
		"request_id", engineErr.RequestID,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	eh.logger.Log(r.Context(), level, "request failed", attrs...)
}

// writeErrorResponse writes the error response as JSON
func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, engineErr EngineError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set("X-Error-Type", engineErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(engineErr); err != nil {
		eh.logger.Error("encode error response", "error", err)
	}
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())
				eh.logger.Error("panic recovered",
					"request_id", requestID,
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprintf("%v", rvr))

				engineErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					Build()
				eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

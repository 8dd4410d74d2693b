package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		// Headers are already sent; an encode failure can only be dropped.
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes an error response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, entity.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// Success writes a success response
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 Created response
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// UsecaseError logs err and answers with the status its sentinel maps to.
func UsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	status, message := StatusFor(err)
	if status >= http.StatusInternalServerError {
		ctxzap.Error(ctx, message, zap.Error(err))
	} else {
		ctxzap.Warn(ctx, message, zap.Error(err))
	}

	// Client errors carry the cause; server errors stay opaque.
	if status < http.StatusInternalServerError {
		message = err.Error()
	}
	Error(w, status, message)
}

// StatusFor maps domain errors to an HTTP status and a generic message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrMissingTenant), errors.Is(err, entity.ErrMissingActor):
		return http.StatusUnauthorized, "missing identity"
	case errors.Is(err, entity.ErrTenantInactive):
		return http.StatusForbidden, "tenant is not active"
	case errors.Is(err, entity.ErrTenantNotFound),
		errors.Is(err, entity.ErrDocumentNotFound),
		errors.Is(err, entity.ErrVersionNotFound),
		errors.Is(err, entity.ErrNoActiveVersion),
		errors.Is(err, entity.ErrConversationNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, entity.ErrUnsupportedMimeType),
		errors.Is(err, entity.ErrInvalidExtension),
		errors.Is(err, entity.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "unsupported media type"
	case errors.Is(err, entity.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, entity.ErrInvalidFile),
		errors.Is(err, entity.ErrEmptyDocument),
		errors.Is(err, entity.ErrMissingField),
		errors.Is(err, entity.ErrInvalidParameter):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, entity.ErrGenerationTimeout):
		return http.StatusGatewayTimeout, "generation timed out"
	case errors.Is(err, entity.ErrProvider), errors.Is(err, entity.ErrEmbeddingMismatch):
		return http.StatusBadGateway, "upstream provider failed"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

package entity

import "errors"

// Domain errors
var (
	// Tenant errors
	ErrMissingTenant  = errors.New("tenant is required")
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantInactive = errors.New("tenant is not active")
	ErrMissingActor   = errors.New("actor is required")

	// Document errors
	ErrDocumentNotFound         = errors.New("document not found")
	ErrVersionNotFound          = errors.New("document version not found")
	ErrNoActiveVersion          = errors.New("document has no active version")
	ErrEmptyDocument            = errors.New("document contains no text")
	ErrUnsupportedMimeType      = errors.New("unsupported mime type")
	ErrInvalidVersionTransition = errors.New("invalid version status transition")
	ErrUnsupportedFormat        = errors.New("unsupported export format")

	// File errors
	ErrInvalidFile      = errors.New("invalid file")
	ErrFileTooLarge     = errors.New("file too large")
	ErrInvalidExtension = errors.New("invalid file extension")

	// Provider errors
	ErrProvider          = errors.New("provider call failed")
	ErrEmbeddingMismatch = errors.New("embedding count does not match input count")
	ErrGenerationTimeout = errors.New("generation timed out")

	// Chat errors
	ErrConversationNotFound = errors.New("conversation not found")

	// Validation errors
	ErrMissingField     = errors.New("required field is missing")
	ErrInvalidParameter = errors.New("invalid parameter")
)

package entity

import (
	"fmt"
	"time"
)

// TenantID identifies an isolated customer organization. Every tenant-scoped
// read or write takes one explicitly.
type TenantID string

func (t TenantID) String() string {
	return string(t)
}

// Validate reports ErrMissingTenant for an empty tenant.
func (t TenantID) Validate() error {
	if t == "" {
		return ErrMissingTenant
	}
	return nil
}

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusInactive  TenantStatus = "inactive"
	TenantStatusSuspended TenantStatus = "suspended"
)

const (
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultLLMModel       = "gpt-4o-mini"

	// EmbeddingDimensions is the width of the chunks.embedding column.
	EmbeddingDimensions = 1536

	// MaxVectorCandidates is the largest candidate pool one search may ask
	// for. pgvector accepts hnsw.ef_search values up to 1000.
	MaxVectorCandidates = 1000
)

type Tenant struct {
	ID             TenantID     `json:"id"`
	Name           string       `json:"name"`
	EmbeddingModel string       `json:"embedding_model"`
	LLMModel       string       `json:"llm_model"`
	Status         TenantStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
}

type VersionStatus string

// Document version lifecycle: processing -> active | error. Both outcomes are terminal.
const (
	VersionStatusProcessing VersionStatus = "processing"
	VersionStatusActive     VersionStatus = "active"
	VersionStatusError      VersionStatus = "error"
)

// DocumentStatusNoVersion is reported for documents without any version.
const DocumentStatusNoVersion = "no_version"

func (s VersionStatus) Validate() error {
	switch s {
	case VersionStatusProcessing, VersionStatusActive, VersionStatusError:
		return nil
	default:
		return fmt.Errorf("unknown version status: %s", s)
	}
}

func (s VersionStatus) IsTerminal() bool {
	return s == VersionStatusActive || s == VersionStatusError
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s VersionStatus) CanTransitionTo(next VersionStatus) bool {
	return s == VersionStatusProcessing && next.IsTerminal()
}

type Document struct {
	ID              string    `json:"id"`
	TenantID        TenantID  `json:"tenant_id"`
	Name            string    `json:"name"`
	ActiveVersionID *string   `json:"active_version_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DocumentWithStatus is a listing row: the document plus the status of its
// active version, or of its latest version when none is active.
type DocumentWithStatus struct {
	Document
	Status string `json:"status"`
}

type DocumentVersion struct {
	ID         string        `json:"id"`
	DocumentID string        `json:"document_id"`
	TenantID   TenantID      `json:"tenant_id"`
	Text       string        `json:"-"`
	Number     int           `json:"version"`
	Status     VersionStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type Chunk struct {
	ID             string    `json:"id"`
	VersionID      string    `json:"version_id"`
	DocumentID     string    `json:"document_id"`
	TenantID       TenantID  `json:"tenant_id"`
	Position       int       `json:"position"`
	Text           string    `json:"text"`
	Embedding      []float32 `json:"-"`
	EmbeddingModel string    `json:"embedding_model"`
	CreatedAt      time.Time `json:"created_at"`
}

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

type Conversation struct {
	ID        string    `json:"id"`
	TenantID  TenantID  `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           MessageRole `json:"role"`
	Content        string      `json:"content"`
	ChunkIDs       []string    `json:"chunk_ids,omitempty"`
	TokenCount     int         `json:"token_count,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

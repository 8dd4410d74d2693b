package repository

import (
	"fmt"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

func toPgUUID(id string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w: invalid id %q", entity.ErrInvalidParameter, id)
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

func fromPgUUID(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}

func fromPgUUIDPtr(id pgtype.UUID) *string {
	if !id.Valid {
		return nil
	}
	s := uuid.UUID(id.Bytes).String()
	return &s
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func scanTenant(row pgx.Row) (*entity.Tenant, error) {
	var (
		t      entity.Tenant
		id     string
		status string
	)

	if err := row.Scan(&id, &t.Name, &t.EmbeddingModel, &t.LLMModel, &status, &t.CreatedAt); err != nil {
		return nil, err
	}

	t.ID = entity.TenantID(id)
	t.Status = entity.TenantStatus(status)
	return &t, nil
}

func scanDocument(row pgx.Row) (*entity.Document, error) {
	var (
		d        entity.Document
		id       pgtype.UUID
		tenantID string
		activeID pgtype.UUID
	)

	if err := row.Scan(&id, &tenantID, &d.Name, &activeID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}

	d.ID = fromPgUUID(id)
	d.TenantID = entity.TenantID(tenantID)
	d.ActiveVersionID = fromPgUUIDPtr(activeID)
	return &d, nil
}

func scanVersion(row pgx.Row) (*entity.DocumentVersion, error) {
	var (
		v          entity.DocumentVersion
		id         pgtype.UUID
		documentID pgtype.UUID
		tenantID   string
		status     string
	)

	if err := row.Scan(&id, &documentID, &tenantID, &v.Number, &v.Text, &status, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}

	v.ID = fromPgUUID(id)
	v.DocumentID = fromPgUUID(documentID)
	v.TenantID = entity.TenantID(tenantID)
	v.Status = entity.VersionStatus(status)
	return &v, nil
}

func scanScoredChunk(row pgx.Row) (*entity.ScoredChunk, error) {
	var (
		c          entity.ScoredChunk
		chunkID    pgtype.UUID
		documentID pgtype.UUID
		versionID  pgtype.UUID
		tenantID   string
		docName    pgtype.Text
	)

	if err := row.Scan(&chunkID, &documentID, &versionID, &tenantID, &c.Text, &c.Score, &docName); err != nil {
		return nil, err
	}

	c.ChunkID = fromPgUUID(chunkID)
	c.DocumentID = fromPgUUID(documentID)
	c.VersionID = fromPgUUID(versionID)
	c.TenantID = entity.TenantID(tenantID)
	c.DocumentName = entity.UntitledDocumentName
	if docName.Valid && docName.String != "" {
		c.DocumentName = docName.String
	}
	return &c, nil
}

func scanConversation(row pgx.Row) (*entity.Conversation, error) {
	var (
		c        entity.Conversation
		id       pgtype.UUID
		tenantID string
	)

	if err := row.Scan(&id, &tenantID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	c.ID = fromPgUUID(id)
	c.TenantID = entity.TenantID(tenantID)
	return &c, nil
}

func scanMessage(row pgx.Row) (*entity.Message, error) {
	var (
		m              entity.Message
		id             pgtype.UUID
		conversationID pgtype.UUID
		role           string
	)

	if err := row.Scan(&id, &conversationID, &role, &m.Content, &m.ChunkIDs, &m.TokenCount, &m.CreatedAt); err != nil {
		return nil, err
	}

	m.ID = fromPgUUID(id)
	m.ConversationID = fromPgUUID(conversationID)
	m.Role = entity.MessageRole(role)
	return &m, nil
}

func toVector(embedding []float32) pgvector.Vector {
	return pgvector.NewVector(embedding)
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository defines the interface for documents and their versions.
// Every method is scoped to a single tenant.
type DocumentRepository interface {
	// CreateWithVersion stores a document and its first version atomically.
	CreateWithVersion(ctx context.Context, doc entity.Document, version entity.DocumentVersion) error
	Get(ctx context.Context, tenant entity.TenantID, id string) (*entity.Document, error)
	List(ctx context.Context, tenant entity.TenantID) ([]*entity.DocumentWithStatus, error)
	// Delete removes the document together with its versions and chunks.
	Delete(ctx context.Context, tenant entity.TenantID, id string) error

	GetVersion(ctx context.Context, tenant entity.TenantID, versionID string) (*entity.DocumentVersion, error)
	ListVersions(ctx context.Context, tenant entity.TenantID, documentID string) ([]*entity.DocumentVersion, error)
	// ActivateVersion marks a processing version active and points the
	// document at it in one transaction.
	ActivateVersion(ctx context.Context, tenant entity.TenantID, documentID, versionID string) error
	MarkVersionError(ctx context.Context, tenant entity.TenantID, versionID string) error
}

var _ DocumentRepository = &DocumentPostgres{}

type DocumentPostgres struct {
	db *pgxpool.Pool
}

func NewDocumentPostgres(db *pgxpool.Pool) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	documentColumns = `d.id, d.tenant_id, d.name, d.active_version_id, d.created_at, d.updated_at`
	versionColumns  = `v.id, v.document_id, v.tenant_id, v.number, v.extracted_text, v.status, v.created_at, v.updated_at`
)

func (r *DocumentPostgres) CreateWithVersion(
	ctx context.Context,
	doc entity.Document,
	version entity.DocumentVersion,
) error {
	if err := doc.TenantID.Validate(); err != nil {
		return err
	}

	docID, err := toPgUUID(doc.ID)
	if err != nil {
		return err
	}
	versionID, err := toPgUUID(version.ID)
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO documents (id, tenant_id, name)
			VALUES ($1, $2, $3)`,
			docID, doc.TenantID.String(), doc.Name,
		); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO document_versions (id, document_id, tenant_id, number, extracted_text, status)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			versionID, docID, doc.TenantID.String(), version.Number, version.Text, string(entity.VersionStatusProcessing),
		); err != nil {
			return fmt.Errorf("insert document version: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("create document with version: %w", err)
	}

	return nil
}

func (r *DocumentPostgres) Get(ctx context.Context, tenant entity.TenantID, id string) (*entity.Document, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	docID, err := toPgUUID(id)
	if err != nil {
		return nil, entity.ErrDocumentNotFound
	}

	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents d WHERE d.id = $1 AND d.tenant_id = $2`,
		docID, tenant.String(),
	)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return doc, nil
}

func (r *DocumentPostgres) List(ctx context.Context, tenant entity.TenantID) ([]*entity.DocumentWithStatus, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+documentColumns+`,
			COALESCE(av.status, lv.status, $2) AS status
		FROM documents d
		LEFT JOIN document_versions av ON av.id = d.active_version_id
		LEFT JOIN LATERAL (
			SELECT v.status
			FROM document_versions v
			WHERE v.document_id = d.id
			ORDER BY v.number DESC, v.created_at DESC
			LIMIT 1
		) lv ON true
		WHERE d.tenant_id = $1
		ORDER BY d.created_at DESC`,
		tenant.String(), entity.DocumentStatusNoVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	documents := make([]*entity.DocumentWithStatus, 0)
	for rows.Next() {
		var (
			d        entity.DocumentWithStatus
			id       pgtype.UUID
			tenantID string
			activeID pgtype.UUID
		)

		if err := rows.Scan(&id, &tenantID, &d.Name, &activeID, &d.CreatedAt, &d.UpdatedAt, &d.Status); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}

		d.ID = fromPgUUID(id)
		d.TenantID = entity.TenantID(tenantID)
		d.ActiveVersionID = fromPgUUIDPtr(activeID)
		documents = append(documents, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return documents, nil
}

func (r *DocumentPostgres) Delete(ctx context.Context, tenant entity.TenantID, id string) error {
	if err := tenant.Validate(); err != nil {
		return err
	}

	docID, err := toPgUUID(id)
	if err != nil {
		return entity.ErrDocumentNotFound
	}

	// Versions and chunks go with the document through ON DELETE CASCADE.
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1 AND tenant_id = $2`, docID, tenant.String())
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return entity.ErrDocumentNotFound
	}

	return nil
}

func (r *DocumentPostgres) GetVersion(
	ctx context.Context,
	tenant entity.TenantID,
	versionID string,
) (*entity.DocumentVersion, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	id, err := toPgUUID(versionID)
	if err != nil {
		return nil, entity.ErrVersionNotFound
	}

	row := r.db.QueryRow(ctx,
		`SELECT `+versionColumns+` FROM document_versions v WHERE v.id = $1 AND v.tenant_id = $2`,
		id, tenant.String(),
	)

	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrVersionNotFound
		}
		return nil, fmt.Errorf("get document version: %w", err)
	}

	return version, nil
}

func (r *DocumentPostgres) ListVersions(
	ctx context.Context,
	tenant entity.TenantID,
	documentID string,
) ([]*entity.DocumentVersion, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	docID, err := toPgUUID(documentID)
	if err != nil {
		return nil, entity.ErrDocumentNotFound
	}

	// Listing skips the extracted text.
	rows, err := r.db.Query(ctx, `
		SELECT v.id, v.document_id, v.tenant_id, v.number, '' AS extracted_text, v.status, v.created_at, v.updated_at
		FROM document_versions v
		WHERE v.document_id = $1 AND v.tenant_id = $2
		ORDER BY v.number`,
		docID, tenant.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	defer rows.Close()

	versions := make([]*entity.DocumentVersion, 0)
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document version: %w", err)
		}
		versions = append(versions, version)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document versions: %w", err)
	}

	return versions, nil
}

func (r *DocumentPostgres) ActivateVersion(
	ctx context.Context,
	tenant entity.TenantID,
	documentID string,
	versionID string,
) error {
	if err := tenant.Validate(); err != nil {
		return err
	}

	docID, err := toPgUUID(documentID)
	if err != nil {
		return entity.ErrDocumentNotFound
	}
	activeID, err := toPgUUID(versionID)
	if err != nil {
		return entity.ErrVersionNotFound
	}

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := transitionVersion(ctx, tx, tenant, versionID, entity.VersionStatusActive); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE documents SET active_version_id = $1, updated_at = now()
			WHERE id = $2 AND tenant_id = $3`,
			activeID, docID, tenant.String(),
		)
		if err != nil {
			return fmt.Errorf("set active version: %w", err)
		}

		if tag.RowsAffected() == 0 {
			return entity.ErrDocumentNotFound
		}

		return nil
	})
}

func (r *DocumentPostgres) MarkVersionError(ctx context.Context, tenant entity.TenantID, versionID string) error {
	if err := tenant.Validate(); err != nil {
		return err
	}

	return transitionVersion(ctx, r.db, tenant, versionID, entity.VersionStatusError)
}

// transitionVersion moves a processing version to a terminal status. The
// status guard lives in the UPDATE so concurrent transitions cannot both win.
func transitionVersion(
	ctx context.Context,
	q querier,
	tenant entity.TenantID,
	versionID string,
	next entity.VersionStatus,
) error {
	id, err := toPgUUID(versionID)
	if err != nil {
		return entity.ErrVersionNotFound
	}

	tag, err := q.Exec(ctx, `
		UPDATE document_versions SET status = $1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3 AND status = $4`,
		string(next), id, tenant.String(), string(entity.VersionStatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("update version status: %w", err)
	}

	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	err = q.QueryRow(ctx,
		`SELECT status FROM document_versions WHERE id = $1 AND tenant_id = $2`,
		id, tenant.String(),
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.ErrVersionNotFound
		}
		return fmt.Errorf("get version status: %w", err)
	}

	return fmt.Errorf("%w: %s -> %s", entity.ErrInvalidVersionTransition, current, next)
}

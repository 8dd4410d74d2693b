package document

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/extractor"
	"github.com/facundoguellutn/stoodeochat/internal/repository"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// markErrorTimeout bounds the error-status write that runs after the
// request context may already be gone.
const markErrorTimeout = 10 * time.Second

// DocumentUsecase implements document ingestion and management
type DocumentUsecase struct {
	documentRepo repository.DocumentRepository
	chunkRepo    repository.ChunkRepository
	tenants      TenantResolver
	extractor    TextExtractor
	chunker      Chunker
	embedder     Embedder
	formatters   FormatterFactory
}

// NewUsecase creates a new document use case
func NewUsecase(
	documentRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	tenants TenantResolver,
	extractor TextExtractor,
	chunker Chunker,
	embedder Embedder,
	formatters FormatterFactory,
) *DocumentUsecase {
	return &DocumentUsecase{
		documentRepo: documentRepo,
		chunkRepo:    chunkRepo,
		tenants:      tenants,
		extractor:    extractor,
		chunker:      chunker,
		embedder:     embedder,
		formatters:   formatters,
	}
}

// ProcessDocument extracts, chunks, embeds and indexes one uploaded file.
// Validation failures leave nothing behind. A failure after the document
// was created leaves its version in error status and the document without
// an active version.
func (uc *DocumentUsecase) ProcessDocument(
	ctx context.Context,
	req entity.ProcessDocumentRequest,
) (*entity.ProcessDocumentResult, error) {
	if err := req.TenantID.Validate(); err != nil {
		return nil, err
	}
	if req.ActorID == "" {
		return nil, entity.ErrMissingActor
	}

	tenant, err := uc.tenants.Resolve(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	mimeType := resolveMimeType(req.MimeType, req.Filename)

	text, err := uc.extractor.Extract(ctx, req.Content, mimeType)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, entity.ErrEmptyDocument
	}

	doc := entity.Document{
		ID:       uuid.New().String(),
		TenantID: tenant.ID,
		Name:     displayName(req.Filename),
	}
	version := entity.DocumentVersion{
		ID:     uuid.New().String(),
		Number: 1,
		Text:   text,
	}

	if err := uc.documentRepo.CreateWithVersion(ctx, doc, version); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	ctxzap.Info(ctx, "document created",
		zap.String("document_id", doc.ID),
		zap.String("version_id", version.ID),
		zap.String("mime_type", mimeType),
		zap.Int("text_length", len(text)),
	)

	chunkCount, err := uc.index(ctx, tenant, req.ActorID, doc, version)
	if err != nil {
		uc.markVersionError(ctx, tenant.ID, version.ID, err)
		return nil, fmt.Errorf("process document %s: %w", doc.ID, err)
	}

	ctxzap.Info(ctx, "document processed successfully",
		zap.String("document_id", doc.ID),
		zap.Int("chunk_count", chunkCount),
	)

	return &entity.ProcessDocumentResult{
		DocumentID: doc.ID,
		VersionID:  version.ID,
		ChunkCount: chunkCount,
	}, nil
}

// index writes every chunk before the version becomes active, so searches
// never see a half-indexed version.
func (uc *DocumentUsecase) index(
	ctx context.Context,
	tenant *entity.Tenant,
	actor string,
	doc entity.Document,
	version entity.DocumentVersion,
) (int, error) {
	texts := uc.chunker.Split(version.Text)
	if len(texts) == 0 {
		return 0, entity.ErrEmptyDocument
	}

	vectors, err := uc.embedder.Embed(ctx, entity.EmbedRequest{
		Texts:    texts,
		Model:    tenant.EmbeddingModel,
		ActorID:  actor,
		TenantID: tenant.ID,
		Metadata: map[string]any{
			"document_id": doc.ID,
			"version_id":  version.ID,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("%w: %d vectors for %d chunks", entity.ErrEmbeddingMismatch, len(vectors), len(texts))
	}

	chunks := make([]*entity.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &entity.Chunk{
			ID:             uuid.New().String(),
			VersionID:      version.ID,
			DocumentID:     doc.ID,
			TenantID:       tenant.ID,
			Position:       i,
			Text:           text,
			Embedding:      vectors[i],
			EmbeddingModel: tenant.EmbeddingModel,
		}
	}

	if err := uc.chunkRepo.InsertBatch(ctx, chunks); err != nil {
		return 0, fmt.Errorf("insert chunks: %w", err)
	}

	if err := uc.documentRepo.ActivateVersion(ctx, tenant.ID, doc.ID, version.ID); err != nil {
		return 0, fmt.Errorf("activate version: %w", err)
	}

	return len(chunks), nil
}

func (uc *DocumentUsecase) markVersionError(ctx context.Context, tenant entity.TenantID, versionID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markErrorTimeout)
	defer cancel()

	ctxzap.Error(ctx, "document processing failed", zap.String("version_id", versionID), zap.Error(cause))

	if err := uc.documentRepo.MarkVersionError(ctx, tenant, versionID); err != nil {
		ctxzap.Error(ctx, "failed to mark version as error", zap.String("version_id", versionID), zap.Error(err))
	}
}

// ListDocuments returns the tenant's documents, newest first.
func (uc *DocumentUsecase) ListDocuments(ctx context.Context, tenant entity.TenantID) (*entity.ListDocumentsResponse, error) {
	docs, err := uc.documentRepo.List(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	resp := &entity.ListDocumentsResponse{Documents: make([]*entity.DocumentSummary, 0, len(docs))}
	for _, d := range docs {
		resp.Documents = append(resp.Documents, &entity.DocumentSummary{
			ID:        d.ID,
			Name:      d.Name,
			Status:    d.Status,
			CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return resp, nil
}

func (uc *DocumentUsecase) GetDocument(ctx context.Context, tenant entity.TenantID, id string) (*entity.DocumentDetail, error) {
	doc, err := uc.documentRepo.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}

	versions, err := uc.documentRepo.ListVersions(ctx, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}

	count, err := uc.chunkRepo.CountByDocument(ctx, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}

	return &entity.DocumentDetail{
		Document:   *doc,
		Versions:   versions,
		ChunkCount: count,
	}, nil
}

// DeleteDocument removes the document with all its versions and chunks.
func (uc *DocumentUsecase) DeleteDocument(ctx context.Context, tenant entity.TenantID, id string) error {
	if err := uc.documentRepo.Delete(ctx, tenant, id); err != nil {
		return err
	}

	ctxzap.Info(ctx, "document deleted", zap.String("document_id", id))
	return nil
}

// ExportDocument renders the active version's text in the requested format.
func (uc *DocumentUsecase) ExportDocument(
	ctx context.Context,
	tenant entity.TenantID,
	id string,
	format entity.ExportFormat,
) (*entity.ExportedDocument, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	doc, err := uc.documentRepo.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if doc.ActiveVersionID == nil {
		return nil, entity.ErrNoActiveVersion
	}

	version, err := uc.documentRepo.GetVersion(ctx, tenant, *doc.ActiveVersionID)
	if err != nil {
		return nil, fmt.Errorf("get active version: %w", err)
	}

	f, err := uc.formatters.Create(format)
	if err != nil {
		return nil, err
	}

	content, err := f.Format(doc.Name, version.Text)
	if err != nil {
		return nil, fmt.Errorf("format document: %w", err)
	}

	ctxzap.Info(ctx, "document exported",
		zap.String("document_id", id),
		zap.String("format", string(format)),
		zap.Int("size", len(content)),
	)

	return &entity.ExportedDocument{
		Filename:    strings.TrimSuffix(doc.Name, filepath.Ext(doc.Name)) + f.FileExtension(),
		ContentType: f.ContentType(),
		Content:     content,
	}, nil
}

// resolveMimeType keeps a supported declared type and otherwise falls back to
// the file extension. Clients often send octet-stream or x- variants.
func resolveMimeType(declared, filename string) string {
	mime := extractor.NormalizeMimeType(declared)
	if extractor.IsSupported(mime) {
		return mime
	}
	if byExt, ok := extractor.MimeTypeFromFilename(filename); ok {
		return byExt
	}
	return mime
}

func displayName(filename string) string {
	name := strings.TrimSpace(filepath.Base(strings.ReplaceAll(filename, `\`, "/")))
	if name == "" || name == "." || name == "/" {
		return entity.UntitledDocumentName
	}
	return name
}

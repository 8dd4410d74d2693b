package document

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/facundoguellutn/stoodeochat/internal/api/middleware"
	"github.com/facundoguellutn/stoodeochat/internal/config"
	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/logger"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/response"
	"github.com/facundoguellutn/stoodeochat/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const formFileField = "file"

type Handler struct {
	usecase   DocumentUsecase
	validator *validator.Validator
	cfg       config.FileUploadConfig
}

func NewHandler(usecase DocumentUsecase, validator *validator.Validator, cfg config.FileUploadConfig) *Handler {
	return &Handler{
		usecase:   usecase,
		validator: validator,
		cfg:       cfg,
	}
}

// UploadDocument handles POST /documents. Indexing runs inside the request:
// the answer says whether the document is searchable.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "UploadDocument")
	id := middleware.IdentityFrom(ctx)

	// Lift the server-wide deadlines so a long ingestion can still answer.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	if r.ContentLength > h.cfg.MaxUploadSize {
		response.UsecaseError(ctx, w, fmt.Errorf("%w: upload exceeds %d bytes", entity.ErrFileTooLarge, h.cfg.MaxUploadSize))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.UsecaseError(ctx, w, fmt.Errorf("%w: upload exceeds %d bytes", entity.ErrFileTooLarge, h.cfg.MaxUploadSize))
			return
		}
		response.UsecaseError(ctx, w, fmt.Errorf("%w: invalid multipart form: %v", entity.ErrInvalidParameter, err))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile(formFileField)
	if err != nil {
		response.UsecaseError(ctx, w, fmt.Errorf("%w: %s", entity.ErrMissingField, formFileField))
		return
	}
	defer file.Close()

	mimeType, err := h.validator.ValidateUpload(header)
	if err != nil {
		response.UsecaseError(ctx, w, err)
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, h.cfg.MaxFileSize+1))
	if err != nil {
		response.UsecaseError(ctx, w, fmt.Errorf("read upload: %w", err))
		return
	}
	if int64(len(content)) > h.cfg.MaxFileSize {
		response.UsecaseError(ctx, w, fmt.Errorf("%w: file '%s'", entity.ErrFileTooLarge, header.Filename))
		return
	}

	if declared := header.Header.Get("Content-Type"); declared != "" && declared != "application/octet-stream" {
		mimeType = declared
	}

	ctxzap.Info(ctx, "processing document",
		zap.String("filename", header.Filename),
		zap.Int("size", len(content)),
		zap.String("mime_type", mimeType),
	)

	result, err := h.usecase.ProcessDocument(ctx, entity.ProcessDocumentRequest{
		Content:  content,
		Filename: header.Filename,
		MimeType: mimeType,
		TenantID: id.TenantID,
		ActorID:  id.UserID,
	})
	if err != nil {
		response.UsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "document processed",
		zap.String("document_id", result.DocumentID),
		zap.Int("chunk_count", result.ChunkCount),
	)
	response.Created(w, result)
}

// ListDocuments handles GET /documents
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "ListDocuments")
	id := middleware.IdentityFrom(ctx)

	resp, err := h.usecase.ListDocuments(ctx, id.TenantID)
	if err != nil {
		response.UsecaseError(ctx, w, err)
		return
	}

	ctxzap.Debug(ctx, "documents listed", zap.Int("count", len(resp.Documents)))
	response.Success(w, resp)
}

// GetDocument handles GET /documents/{document_id}
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")
	ctx := logger.AddFields(r.Context(),
		zap.String("document_id", documentID),
		zap.String("action", "GetDocument"),
	)
	id := middleware.IdentityFrom(ctx)

	detail, err := h.usecase.GetDocument(ctx, id.TenantID, documentID)
	if err != nil {
		response.UsecaseError(ctx, w, err)
		return
	}

	response.Success(w, detail)
}

// DeleteDocument handles DELETE /documents/{document_id}
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")
	ctx := logger.AddFields(r.Context(),
		zap.String("document_id", documentID),
		zap.String("action", "DeleteDocument"),
	)
	id := middleware.IdentityFrom(ctx)

	if err := h.usecase.DeleteDocument(ctx, id.TenantID, documentID); err != nil {
		response.UsecaseError(ctx, w, err)
		return
	}

	response.Success(w, &entity.DeleteDocumentResponse{Status: "deleted"})
}

// ExportDocument handles GET /documents/{document_id}/export?format=md|docx|pdf
func (h *Handler) ExportDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "document_id")
	ctx := logger.AddFields(r.Context(),
		zap.String("document_id", documentID),
		zap.String("action", "ExportDocument"),
	)
	id := middleware.IdentityFrom(ctx)

	format := entity.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = entity.ExportFormatMarkdown
	}

	exported, err := h.usecase.ExportDocument(ctx, id.TenantID, documentID, format)
	if err != nil {
		response.UsecaseError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", exported.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", validator.SanitizeFilename(exported.Filename)))
	w.Header().Set("Content-Length", strconv.Itoa(len(exported.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(exported.Content); err != nil {
		ctxzap.Warn(ctx, "failed to write export", zap.Error(err))
	}
}

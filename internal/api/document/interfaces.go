package document

import (
	"context"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
)

type DocumentUsecase interface {
	ProcessDocument(ctx context.Context, req entity.ProcessDocumentRequest) (*entity.ProcessDocumentResult, error)
	ListDocuments(ctx context.Context, tenant entity.TenantID) (*entity.ListDocumentsResponse, error)
	GetDocument(ctx context.Context, tenant entity.TenantID, id string) (*entity.DocumentDetail, error)
	DeleteDocument(ctx context.Context, tenant entity.TenantID, id string) error
	ExportDocument(ctx context.Context, tenant entity.TenantID, id string, format entity.ExportFormat) (*entity.ExportedDocument, error)
}

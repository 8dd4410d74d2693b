package entity

type ProcessDocumentRequest struct {
	Content  []byte
	Filename string
	MimeType string
	TenantID TenantID
	ActorID  string
}

type ProcessDocumentResult struct {
	DocumentID string `json:"document_id"`
	VersionID  string `json:"version_id"`
	ChunkCount int    `json:"chunk_count"`
}

type DocumentSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type ListDocumentsResponse struct {
	Documents []*DocumentSummary `json:"documents"`
}

type DocumentDetail struct {
	Document
	Versions   []*DocumentVersion `json:"versions"`
	ChunkCount int                `json:"chunk_count"`
}

type DeleteDocumentResponse struct {
	Status string `json:"status"`
}

type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "md"
	ExportFormatDOCX     ExportFormat = "docx"
	ExportFormatPDF      ExportFormat = "pdf"
)

func (f ExportFormat) Validate() error {
	switch f {
	case ExportFormatMarkdown, ExportFormatDOCX, ExportFormatPDF:
		return nil
	default:
		return ErrUnsupportedFormat
	}
}

type ExportedDocument struct {
	Filename    string
	ContentType string
	Content     []byte
}

type SearchResponse struct {
	Results []*ScoredChunk `json:"results"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

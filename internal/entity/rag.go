package entity

// UntitledDocumentName is the source name used when a chunk's document is gone.
const UntitledDocumentName = "Untitled document"

type EmbedRequest struct {
	Texts    []string
	Model    string
	ActorID  string
	TenantID TenantID // optional
	Metadata map[string]any
}

// SearchQuery is the caller-facing retrieval request. Zero values fall back
// to the configured defaults.
type SearchQuery struct {
	Query    string   `json:"query"`
	Limit    int      `json:"limit,omitempty"`
	MinScore *float64 `json:"min_score,omitempty"`
}

// VectorQuery is what the store sees: how many results, how many candidates
// to consider before the score cut, and the score floor.
type VectorQuery struct {
	Limit      int
	Candidates int
	MinScore   float64
}

// ScoredChunk is a chunk returned by similarity search.
type ScoredChunk struct {
	ChunkID      string   `json:"chunk_id"`
	DocumentID   string   `json:"document_id"`
	VersionID    string   `json:"version_id"`
	TenantID     TenantID `json:"-"`
	Text         string   `json:"text"`
	Score        float64  `json:"score"`
	DocumentName string   `json:"document_name"`
}

type AssembledContext struct {
	Text       string
	HasContext bool
}

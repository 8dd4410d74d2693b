// Package memory keeps every repository in process memory. Data is
// partitioned by tenant, so a lookup can only ever see one tenant's rows.
package memory

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
)

// Store is the shared state behind the memory repositories. Deletes that span
// documents, versions and chunks happen under one lock.
type Store struct {
	mu sync.RWMutex

	tenants       map[entity.TenantID]entity.Tenant
	partitions    map[entity.TenantID]*partition
	usage         []entity.UsageRecord
	conversations map[entity.TenantID]map[string]*conversationEntry

	// dimensions is the vector width every chunk and query must have. Zero
	// until set by WithDimensions or by the first stored chunk.
	dimensions int

	now func() time.Time
}

type Option func(*Store)

// WithDimensions fixes the embedding width up front.
func WithDimensions(n int) Option {
	return func(s *Store) {
		s.dimensions = max(n, 0)
	}
}

type partition struct {
	documents map[string]*entity.Document
	versions  map[string]*entity.DocumentVersion
	// chunks keeps insertion order; search ties resolve by it.
	chunks []*entity.Chunk
	// order of document creation, oldest first.
	documentOrder []string
}

type conversationEntry struct {
	conv     entity.Conversation
	messages []*entity.Message
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		tenants:       make(map[entity.TenantID]entity.Tenant),
		partitions:    make(map[entity.TenantID]*partition),
		conversations: make(map[entity.TenantID]map[string]*conversationEntry),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Tenants() *TenantMemory {
	return &TenantMemory{store: s}
}

func (s *Store) Documents() *DocumentMemory {
	return &DocumentMemory{store: s}
}

func (s *Store) Chunks() *ChunkMemory {
	return &ChunkMemory{store: s}
}

func (s *Store) Usage() *UsageMemory {
	return &UsageMemory{store: s}
}

func (s *Store) Conversations() *ConversationMemory {
	return &ConversationMemory{store: s}
}

// partition returns the tenant's partition, creating it when create is set.
// Callers hold the lock.
func (s *Store) partition(tenant entity.TenantID, create bool) *partition {
	p, ok := s.partitions[tenant]
	if !ok && create {
		p = &partition{
			documents: make(map[string]*entity.Document),
			versions:  make(map[string]*entity.DocumentVersion),
		}
		s.partitions[tenant] = p
	}
	return p
}

// checkDimensions rejects a vector whose width differs from the store's.
// Callers hold the lock.
func (s *Store) checkDimensions(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty embedding", entity.ErrEmbeddingMismatch)
	}
	if s.dimensions > 0 && len(v) != s.dimensions {
		return fmt.Errorf("%w: vector has %d dimensions, want %d", entity.ErrEmbeddingMismatch, len(v), s.dimensions)
	}
	return nil
}

// cosineSimilarity expects vectors of equal width.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func cloneDocument(d *entity.Document) *entity.Document {
	out := *d
	if d.ActiveVersionID != nil {
		id := *d.ActiveVersionID
		out.ActiveVersionID = &id
	}
	return &out
}

func cloneMessage(m *entity.Message) *entity.Message {
	out := *m
	out.ChunkIDs = append([]string(nil), m.ChunkIDs...)
	return &out
}

func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/facundoguellutn/stoodeochat/internal/repository"
)

var _ repository.ChunkRepository = &ChunkMemory{}

type ChunkMemory struct {
	store *Store
}

func (r *ChunkMemory) InsertBatch(_ context.Context, chunks []*entity.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	// Validate everything first so a bad row leaves nothing behind.
	for _, c := range chunks {
		if err := c.TenantID.Validate(); err != nil {
			return err
		}
		p := r.store.partition(c.TenantID, false)
		if p == nil {
			return fmt.Errorf("insert chunks: %w", entity.ErrVersionNotFound)
		}
		v, ok := p.versions[c.VersionID]
		if !ok || v.DocumentID != c.DocumentID {
			return fmt.Errorf("insert chunks: %w", entity.ErrVersionNotFound)
		}
	}
	width := r.store.dimensions
	if width == 0 {
		width = len(chunks[0].Embedding)
	}
	for _, c := range chunks {
		if len(c.Embedding) == 0 || len(c.Embedding) != width {
			return fmt.Errorf("insert chunks: %w: vector has %d dimensions, want %d",
				entity.ErrEmbeddingMismatch, len(c.Embedding), width)
		}
	}
	r.store.dimensions = width

	now := r.store.now()
	for _, c := range chunks {
		stored := *c
		stored.Embedding = append([]float32(nil), c.Embedding...)
		stored.CreatedAt = now

		p := r.store.partition(c.TenantID, false)
		p.chunks = append(p.chunks, &stored)
	}

	return nil
}

func (r *ChunkMemory) SearchByVector(
	_ context.Context,
	tenant entity.TenantID,
	vector []float32,
	q entity.VectorQuery,
) ([]*entity.ScoredChunk, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	results := make([]*entity.ScoredChunk, 0)
	if q.Limit <= 0 {
		return results, nil
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if err := r.store.checkDimensions(vector); err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	p := r.store.partition(tenant, false)
	if p == nil {
		return results, nil
	}

	type candidate struct {
		chunk *entity.Chunk
		score float64
	}

	// Only this tenant's partition is scanned.
	candidates := make([]candidate, 0, len(p.chunks))
	for _, c := range p.chunks {
		v, ok := p.versions[c.VersionID]
		if !ok || v.Status != entity.VersionStatusActive {
			continue
		}
		candidates = append(candidates, candidate{chunk: c, score: cosineSimilarity(c.Embedding, vector)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	pool := max(q.Candidates, q.Limit)
	if len(candidates) > pool {
		candidates = candidates[:pool]
	}

	for _, cand := range candidates {
		if cand.score < q.MinScore {
			break
		}

		name := entity.UntitledDocumentName
		if doc, ok := p.documents[cand.chunk.DocumentID]; ok && doc.Name != "" {
			name = doc.Name
		}

		results = append(results, &entity.ScoredChunk{
			ChunkID:      cand.chunk.ID,
			DocumentID:   cand.chunk.DocumentID,
			VersionID:    cand.chunk.VersionID,
			TenantID:     cand.chunk.TenantID,
			Text:         cand.chunk.Text,
			Score:        cand.score,
			DocumentName: name,
		})
		if len(results) == q.Limit {
			break
		}
	}

	return results, nil
}

func (r *ChunkMemory) CountByDocument(_ context.Context, tenant entity.TenantID, documentID string) (int, error) {
	if err := tenant.Validate(); err != nil {
		return 0, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p := r.store.partition(tenant, false)
	if p == nil {
		return 0, nil
	}

	count := 0
	for _, c := range p.chunks {
		if c.DocumentID == documentID {
			count++
		}
	}
	return count, nil
}

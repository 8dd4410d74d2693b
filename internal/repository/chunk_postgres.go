package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ChunkRepository defines the interface for chunk persistence and
// similarity search.
type ChunkRepository interface {
	// InsertBatch stores all chunks or none of them.
	InsertBatch(ctx context.Context, chunks []*entity.Chunk) error
	// SearchByVector ranks the tenant's chunks of active versions by cosine
	// similarity. The tenant filter is applied while gathering candidates.
	SearchByVector(ctx context.Context, tenant entity.TenantID, vector []float32, q entity.VectorQuery) ([]*entity.ScoredChunk, error)
	CountByDocument(ctx context.Context, tenant entity.TenantID, documentID string) (int, error)
}

var _ ChunkRepository = &ChunkPostgres{}

type ChunkPostgres struct {
	db *pgxpool.Pool
}

func NewChunkPostgres(db *pgxpool.Pool) *ChunkPostgres {
	return &ChunkPostgres{db: db}
}

func (r *ChunkPostgres) InsertBatch(ctx context.Context, chunks []*entity.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(chunks))
	for _, c := range chunks {
		if err := c.TenantID.Validate(); err != nil {
			return err
		}

		chunkID, err := toPgUUID(c.ID)
		if err != nil {
			return fmt.Errorf("invalid chunk ID: %w", err)
		}
		versionID, err := toPgUUID(c.VersionID)
		if err != nil {
			return fmt.Errorf("invalid version ID: %w", err)
		}
		documentID, err := toPgUUID(c.DocumentID)
		if err != nil {
			return fmt.Errorf("invalid document ID: %w", err)
		}

		rows = append(rows, []any{
			chunkID,
			versionID,
			documentID,
			c.TenantID.String(),
			int32(c.Position),
			c.Text,
			toVector(c.Embedding),
			c.EmbeddingModel,
		})
	}

	// COPY is a single statement, so a failure leaves no partial rows.
	_, err := r.db.CopyFrom(
		ctx,
		pgx.Identifier{"chunks"},
		[]string{"id", "version_id", "document_id", "tenant_id", "position", "text", "embedding", "embedding_model"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		ctxzap.Error(ctx, "failed to batch insert chunks", zap.Error(err), zap.Int("count", len(chunks)))
		return fmt.Errorf("insert chunks: %w", err)
	}

	return nil
}

func (r *ChunkPostgres) SearchByVector(
	ctx context.Context,
	tenant entity.TenantID,
	vector []float32,
	q entity.VectorQuery,
) ([]*entity.ScoredChunk, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	if q.Limit <= 0 {
		return []*entity.ScoredChunk{}, nil
	}
	candidates := clampEfSearch(max(q.Candidates, q.Limit))
	args := []any{tenant.String(), toVector(vector), string(entity.VersionStatusActive), candidates}

	var found []*entity.ScoredChunk

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		// Iterative scans keep walking the index until enough rows pass the
		// tenant and version filters, bounded by max_scan_tuples.
		if _, err := tx.Exec(ctx, `
			SELECT set_config('hnsw.ef_search', $1, true),
				set_config('hnsw.iterative_scan', 'strict_order', true),
				set_config('hnsw.max_scan_tuples', $2, true)`,
			strconv.Itoa(candidates),
			strconv.Itoa(maxScanTuples),
		); err != nil {
			return fmt.Errorf("configure hnsw scan: %w", err)
		}

		var err error
		found, err = queryScoredChunks(ctx, tx, annSearchQuery, args...)
		if err != nil {
			return fmt.Errorf("query similar chunks: %w", err)
		}
		if len(found) >= candidates {
			return nil
		}

		// The scan stopped short, so the tenant may hold fewer chunks than
		// the pool or the index ran out of tuples. Rank its chunks exactly.
		found, err = queryScoredChunks(ctx, tx, exactSearchQuery, args...)
		if err != nil {
			return fmt.Errorf("query similar chunks exactly: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search by vector: %w", err)
	}

	results := selectTop(found, q.MinScore, q.Limit)

	ctxzap.Debug(ctx, "vector search completed",
		zap.String("tenant_id", tenant.String()),
		zap.Int("candidates", candidates),
		zap.Int("gathered", len(found)),
		zap.Int("returned", len(results)),
	)

	return results, nil
}

// maxScanTuples bounds one iterative HNSW scan before the exact fallback.
const maxScanTuples = 20000

const annSearchQuery = `
	SELECT c.id, c.document_id, c.version_id, c.tenant_id, c.text, c.score, d.name
	FROM (
		SELECT ch.id, ch.document_id, ch.version_id, ch.tenant_id, ch.text,
			1 - (ch.embedding <=> $2) AS score
		FROM chunks ch
		JOIN document_versions v
			ON v.id = ch.version_id AND v.status = $3
		WHERE ch.tenant_id = $1
		ORDER BY ch.embedding <=> $2
		LIMIT $4
	) c
	LEFT JOIN documents d ON d.id = c.document_id
	ORDER BY c.score DESC`

// The materialized scope keeps the planner off the global HNSW index.
const exactSearchQuery = `
	WITH scoped AS MATERIALIZED (
		SELECT ch.id, ch.document_id, ch.version_id, ch.tenant_id, ch.text, ch.embedding
		FROM chunks ch
		JOIN document_versions v
			ON v.id = ch.version_id AND v.status = $3
		WHERE ch.tenant_id = $1
	)
	SELECT s.id, s.document_id, s.version_id, s.tenant_id, s.text,
		1 - (s.embedding <=> $2) AS score, d.name
	FROM scoped s
	LEFT JOIN documents d ON d.id = s.document_id
	ORDER BY s.embedding <=> $2
	LIMIT $4`

func queryScoredChunks(ctx context.Context, tx pgx.Tx, query string, args ...any) ([]*entity.ScoredChunk, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*entity.ScoredChunk
	for rows.Next() {
		chunk, err := scanScoredChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// clampEfSearch keeps n inside the range hnsw.ef_search accepts.
func clampEfSearch(n int) int {
	return min(max(n, 1), entity.MaxVectorCandidates)
}

// selectTop keeps chunks scoring at least minScore, best first, up to limit.
func selectTop(chunks []*entity.ScoredChunk, minScore float64, limit int) []*entity.ScoredChunk {
	out := make([]*entity.ScoredChunk, 0, min(len(chunks), max(limit, 0)))
	for _, c := range chunks {
		if c.Score >= minScore {
			out = append(out, c)
		}
	}

	slices.SortStableFunc(out, func(a, b *entity.ScoredChunk) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(out) > limit {
		out = out[:max(limit, 0)]
	}
	return out
}

func (r *ChunkPostgres) CountByDocument(ctx context.Context, tenant entity.TenantID, documentID string) (int, error) {
	if err := tenant.Validate(); err != nil {
		return 0, err
	}

	docID, err := toPgUUID(documentID)
	if err != nil {
		return 0, entity.ErrDocumentNotFound
	}

	var count int
	err = r.db.QueryRow(ctx,
		`SELECT count(*) FROM chunks WHERE tenant_id = $1 AND document_id = $2`,
		tenant.String(), docID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}

	return count, nil
}

package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// minVectorVersion is the first pgvector release with iterative index scans.
var minVectorVersion = [2]int{0, 8}

// CheckVectorExtension fails unless the installed pgvector supports
// iterative HNSW scans, which tenant-filtered search relies on.
func CheckVectorExtension(ctx context.Context, db *pgxpool.Pool) error {
	var version string
	err := db.QueryRow(ctx, `SELECT extversion FROM pg_extension WHERE extname = 'vector'`).Scan(&version)
	if err != nil {
		return fmt.Errorf("read pgvector version: %w", err)
	}

	if !vectorVersionSupported(version) {
		return fmt.Errorf("pgvector %s is too old, need %d.%d or later", version, minVectorVersion[0], minVectorVersion[1])
	}

	return nil
}

func vectorVersionSupported(version string) bool {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return false
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return false
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}

	if major != minVectorVersion[0] {
		return major > minVectorVersion[0]
	}
	return minor >= minVectorVersion[1]
}

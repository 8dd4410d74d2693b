package repository

import (
	"testing"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/stretchr/testify/assert"
)

func TestClampEfSearch(t *testing.T) {
	assert.Equal(t, 1, clampEfSearch(0))
	assert.Equal(t, 100, clampEfSearch(100))
	assert.Equal(t, entity.MaxVectorCandidates, clampEfSearch(2000))
}

func TestSelectTop(t *testing.T) {
	chunk := func(id string, score float64) *entity.ScoredChunk {
		return &entity.ScoredChunk{ChunkID: id, Score: score}
	}
	ids := func(chunks []*entity.ScoredChunk) []string {
		out := make([]string, 0, len(chunks))
		for _, c := range chunks {
			out = append(out, c.ChunkID)
		}
		return out
	}

	found := []*entity.ScoredChunk{
		chunk("low", 0.4),
		chunk("b", 0.7),
		chunk("a", 0.9),
		chunk("c", 0.7),
	}

	t.Run("fewer qualifying than limit", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b", "c"}, ids(selectTop(found, 0.5, 5)))
	})

	t.Run("limit cuts the tail", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, ids(selectTop(found, 0.5, 2)))
	})

	t.Run("nothing clears the floor", func(t *testing.T) {
		got := selectTop(found, 0.95, 5)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestVectorVersionSupported(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"0.8.0", true},
		{"0.8.1", true},
		{"0.10.0", true},
		{"1.0", true},
		{"0.7.4", false},
		{"0.5.1", false},
		{"", false},
		{"dev", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			assert.Equal(t, tt.want, vectorVersionSupported(tt.version))
		})
	}
}

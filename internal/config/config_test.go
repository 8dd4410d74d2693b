package config

import (
	"testing"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORAGE_DRIVER", StorageDriverMemory)
	t.Setenv("ENABLE_MOCKS", "true")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := loadFromEnv("test")
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, entity.EmbeddingDimensions, cfg.EmbeddingConnectorCfg.Dimensions)
	assert.Equal(t, entity.MaxVectorCandidates, cfg.RetrievalCfg.MaxCandidates)
	assert.Empty(t, cfg.UnidocLicenseKey)
	assert.NotEmpty(t, cfg.Pricing)
}

func TestLoadFromEnv_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		message string
	}{
		{
			name:    "dimensions differ from the vector column",
			env:     map[string]string{"EMBEDDING_DIMENSIONS": "768"},
			message: "EMBEDDING_DIMENSIONS",
		},
		{
			name:    "candidate pool above the index limit",
			env:     map[string]string{"RETRIEVAL_MAX_CANDIDATES": "5000"},
			message: "RETRIEVAL_MAX_CANDIDATES",
		},
		{
			name:    "candidate pool below the max limit",
			env:     map[string]string{"RETRIEVAL_MAX_CANDIDATES": "10"},
			message: "RETRIEVAL_MAX_CANDIDATES",
		},
		{
			name:    "postgres without a database url",
			env:     map[string]string{"STORAGE_DRIVER": StorageDriverPostgres, "DATABASE_URL": ""},
			message: "DATABASE_URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := loadFromEnv("test")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

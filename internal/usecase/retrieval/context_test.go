package retrieval

import (
	"strings"
	"testing"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/stretchr/testify/assert"
)

func TestAssembleContext(t *testing.T) {
	t.Run("no chunks", func(t *testing.T) {
		got := AssembleContext(nil)
		assert.False(t, got.HasContext)
		assert.Equal(t, NoDocumentsMarker, got.Text)
	})

	t.Run("tagged blocks", func(t *testing.T) {
		got := AssembleContext([]*entity.ScoredChunk{
			{Text: "Abrimos a las 9.", Score: 0.876, DocumentName: "horarios.md"},
			{Text: "Sin nombre.", Score: 0.5},
		})

		assert.True(t, got.HasContext)
		assert.Equal(t,
			"<document id=\"1\" source=\"horarios.md\" relevance=\"88%\">\nAbrimos a las 9.\n</document>\n\n"+
				"<document id=\"2\" source=\"Untitled document\" relevance=\"50%\">\nSin nombre.\n</document>",
			got.Text)
	})

	t.Run("source attribute stays on one line", func(t *testing.T) {
		got := AssembleContext([]*entity.ScoredChunk{{Text: "x", Score: 1, DocumentName: "a \"b\"\nc"}})
		assert.Contains(t, got.Text, `source="a 'b' c"`)
		assert.Contains(t, got.Text, `relevance="100%"`)
	})
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt(AssembleContext(nil))
	assert.Contains(t, prompt, NoDocumentsMarker)
	assert.True(t, strings.HasPrefix(prompt, "Eres un asistente"))

	prompt = BuildSystemPrompt(AssembleContext([]*entity.ScoredChunk{{Text: "dato", Score: 0.7, DocumentName: "d"}}))
	assert.Contains(t, prompt, "<document id=\"1\"")
	assert.Contains(t, prompt, "no tienes esa información disponible")
}

package retrieval

import (
	"fmt"
	"math"
	"strings"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
)

// NoDocumentsMarker stands in for the context block when nothing was retrieved.
const NoDocumentsMarker = "No hay documentos disponibles para esta consulta."

// AssembleContext renders chunks as tagged blocks carrying an ordinal id, the
// source document and the relevance as a percentage.
func AssembleContext(chunks []*entity.ScoredChunk) entity.AssembledContext {
	if len(chunks) == 0 {
		return entity.AssembledContext{Text: NoDocumentsMarker}
	}

	blocks := make([]string, 0, len(chunks))
	for i, c := range chunks {
		source := c.DocumentName
		if source == "" {
			source = entity.UntitledDocumentName
		}
		blocks = append(blocks, fmt.Sprintf(
			"<document id=\"%d\" source=\"%s\" relevance=\"%d%%\">\n%s\n</document>",
			i+1,
			escapeAttr(source),
			int(math.Round(c.Score*100)),
			c.Text,
		))
	}

	return entity.AssembledContext{
		Text:       strings.Join(blocks, "\n\n"),
		HasContext: true,
	}
}

var attrEscaper = strings.NewReplacer(`"`, "'", "\n", " ", "\r", " ")

func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

const systemPromptTemplate = `Eres un asistente útil que responde preguntas basándote en la información proporcionada.

CONTEXTO DE LA EMPRESA:
%s

INSTRUCCIONES:
- Responde de manera clara y concisa basándote en el contexto proporcionado.
- Si la información no está en el contexto, indica que no tienes esa información disponible.
- No inventes información que no esté en el contexto.
- Cuando uses un documento, cita su nombre (atributo source).
- Responde siempre en español.`

// BuildSystemPrompt wraps the assembled context in the answering rules.
func BuildSystemPrompt(assembled entity.AssembledContext) string {
	return fmt.Sprintf(systemPromptTemplate, assembled.Text)
}

package formatter

import (
	"fmt"
	"strings"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
)

// defaultTitle heads exports of documents without a name.
const defaultTitle = "Documento"

type Formatter interface {
	Format(title, plainText string) ([]byte, error)
	ContentType() string
	FileExtension() string
}

// Factory builds formatters. DOCX export needs a UniDoc licence, so it stays
// off until the licence has been applied.
type Factory struct {
	docxEnabled bool
}

type FactoryOption func(*Factory)

// WithDOCX enables DOCX export.
func WithDOCX() FactoryOption {
	return func(f *Factory) {
		f.docxEnabled = true
	}
}

func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Factory) Create(format entity.ExportFormat) (Formatter, error) {
	switch format {
	case entity.ExportFormatMarkdown:
		return NewMarkdownFormatter(), nil
	case entity.ExportFormatDOCX:
		if !f.docxEnabled {
			return nil, fmt.Errorf("%w: docx export requires UNIDOC_LICENSE_API_KEY", entity.ErrUnsupportedFormat)
		}
		return NewDOCXFormatter(), nil
	case entity.ExportFormatPDF:
		return NewPDFFormatter(), nil
	default:
		return nil, fmt.Errorf("%w: %s", entity.ErrUnsupportedFormat, format)
	}
}

func titleOrDefault(title string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return defaultTitle
}

// paragraphs splits text on blank lines and drops empty pieces.
func paragraphs(text string) []string {
	parts := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

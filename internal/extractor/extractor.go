// Package extractor turns uploaded files into plain text.
package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/facundoguellutn/stoodeochat/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const (
	MimeTypePlain    = "text/plain"
	MimeTypeMarkdown = "text/markdown"
	MimeTypePDF      = "application/pdf"
	MimeTypeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var mimeByExtension = map[string]string{
	".txt":  MimeTypePlain,
	".md":   MimeTypeMarkdown,
	".pdf":  MimeTypePDF,
	".docx": MimeTypeDOCX,
}

// MimeTypeFromFilename maps a supported file extension to its MIME type.
func MimeTypeFromFilename(filename string) (string, bool) {
	mime, ok := mimeByExtension[strings.ToLower(filepath.Ext(filename))]
	return mime, ok
}

// NormalizeMimeType drops parameters such as charset and lower-cases the type.
func NormalizeMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func IsSupported(mimeType string) bool {
	switch NormalizeMimeType(mimeType) {
	case MimeTypePlain, MimeTypeMarkdown, MimeTypePDF, MimeTypeDOCX:
		return true
	default:
		return false
	}
}

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Extract returns the text of content. Unsupported types fail with
// ErrUnsupportedMimeType; the caller decides what empty text means.
func (e *Extractor) Extract(ctx context.Context, content []byte, mimeType string) (string, error) {
	mime := NormalizeMimeType(mimeType)

	var (
		text string
		err  error
	)

	switch mime {
	case MimeTypePlain, MimeTypeMarkdown:
		text = decodeUTF8(content)
	case MimeTypePDF:
		text, err = extractPDF(content)
	case MimeTypeDOCX:
		text, err = extractDOCX(content)
	default:
		return "", fmt.Errorf("%w: %s", entity.ErrUnsupportedMimeType, mimeType)
	}

	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrInvalidFile, err)
	}

	ctxzap.Debug(ctx, "text extracted",
		zap.String("mime_type", mime),
		zap.Int("bytes", len(content)),
		zap.Int("chars", utf8.RuneCountInString(text)),
	)

	return text, nil
}

func decodeUTF8(content []byte) string {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), "�")
}

// extractPDF rebuilds each page's lines from positioned text runs, so a
// heading and the paragraph under it do not run together.
func extractPDF(content []byte) (text string, err error) {
	// The PDF parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() || page.V.Key("Contents").IsNull() {
			continue
		}
		pages = append(pages, pageText(page.Content().Text))
	}

	return strings.Join(pages, "\n"), nil
}

// pageText joins runs in content-stream order. A vertical move starts a new
// line and a horizontal jump between runs becomes a space.
func pageText(runs []pdf.Text) string {
	var (
		b    strings.Builder
		prev *pdf.Text
	)

	for i := range runs {
		run := &runs[i]
		if run.S == "" || run.S == "\n" {
			continue
		}

		if prev != nil {
			switch {
			case math.Abs(run.Y-prev.Y) > max(prev.FontSize*0.5, 1):
				b.WriteByte('\n')
			case run.X > prev.X+prev.W+max(prev.FontSize*0.2, 0.5) &&
				!strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(run.S, " "):
				b.WriteByte(' ')
			}
		}

		b.WriteString(run.S)
		prev = run
	}

	return b.String()
}

// maxDocumentXML bounds the decompressed body of a DOCX file.
const maxDocumentXML = 64 << 20

// extractDOCX reads word/document.xml. Paragraphs become lines and table rows
// become tab-separated lines, all in document order.
func extractDOCX(content []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	body, err := archive.Open("word/document.xml")
	if err != nil {
		return "", fmt.Errorf("open docx body: %w", err)
	}
	defer body.Close()

	return documentText(io.LimitReader(body, maxDocumentXML))
}

func documentText(r io.Reader) (string, error) {
	var (
		buf       bytes.Buffer
		dec       = xml.NewDecoder(r)
		inRun     bool
		inText    bool
		cellDepth int
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx body: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "r":
				inRun = true
			case "t":
				inText = inRun
			case "tab":
				// Tab stops in paragraph properties share the element name.
				if inRun {
					buf.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					buf.WriteByte('\n')
				}
			case "tc":
				cellDepth++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inText = false
			case "p":
				if cellDepth > 0 {
					buf.WriteByte(' ')
				} else {
					buf.WriteByte('\n')
				}
			case "tc":
				cellDepth--
				trimTrailing(&buf, " ")
				buf.WriteByte('\t')
			case "tr":
				trimTrailing(&buf, "\t")
				buf.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				buf.Write(t)
			}
		}
	}

	lines := strings.Split(buf.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func trimTrailing(buf *bytes.Buffer, cutset string) {
	trimmed := bytes.TrimRight(buf.Bytes(), cutset)
	buf.Truncate(len(trimmed))
}

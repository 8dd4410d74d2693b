package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func article(sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "Sentence number %03d explains how retrieval works.", i)
	}
	return b.String()
}

func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func TestSplit_Empty(t *testing.T) {
	assert.Empty(t, Split("", DefaultOptions()))
	assert.Empty(t, Split("   \n\t  ", DefaultOptions()))
	assert.NotNil(t, Split("", DefaultOptions()))
}

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	chunks := Split("  Hola mundo.\r\nSegunda linea.  ", DefaultOptions())

	require.Len(t, chunks, 1)
	assert.Equal(t, "Hola mundo.\nSegunda linea.", chunks[0])
}

func TestSplit_ExactlyMaxSize(t *testing.T) {
	text := strings.Repeat("a", DefaultMaxSize)

	chunks := Split(text, DefaultOptions())

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplit_ArticleRespectsBoundsAndOverlap(t *testing.T) {
	text := article(40)
	require.Greater(t, utf8.RuneCountInString(text), 1900)

	chunks := Split(text, DefaultOptions())

	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), DefaultMaxSize, "chunk %d too long", i)
		assert.Equal(t, strings.TrimSpace(chunk), chunk)
		if i == 0 {
			continue
		}
		tail := strings.TrimSpace(lastRunes(chunks[i-1], DefaultOverlap))
		assert.True(t, strings.HasPrefix(chunk, tail), "chunk %d does not start with the tail of chunk %d", i, i-1)
	}
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "Sentence number 039 explains how retrieval works."))
}

func TestSplit_LongSentenceIsForceSplit(t *testing.T) {
	text := strings.Repeat("x", 2000)

	chunks := Split(text, DefaultOptions())

	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("x", 800), chunks[0])
	assert.Equal(t, strings.Repeat("x", 800), chunks[1])
	assert.Equal(t, strings.Repeat("x", 600), chunks[2])
}

func TestSplit_ForceSplitKeepsOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1200; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	text := b.String()

	chunks := Split(text, DefaultOptions())

	require.Len(t, chunks, 2)
	assert.Equal(t, text[:800], chunks[0])
	assert.Equal(t, text[700:], chunks[1])
}

func TestSplit_CountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("ñ", 700)

	chunks := Split(text, DefaultOptions())

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplit_Deterministic(t *testing.T) {
	text := article(60)

	assert.Equal(t, Split(text, DefaultOptions()), Split(text, DefaultOptions()))
}

func TestSplit_NoOverlap(t *testing.T) {
	opts := Options{MinSize: 100, MaxSize: 200, Overlap: 0}

	chunks := Split(article(12), opts)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.True(t, strings.HasPrefix(chunk, "Sentence number"), chunk)
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 200)
	}
}

func TestOptions_Normalize(t *testing.T) {
	t.Run("overlap not smaller than max size", func(t *testing.T) {
		o := Options{MinSize: 10, MaxSize: 100, Overlap: 150}.normalize()
		assert.Equal(t, 25, o.Overlap)
	})

	t.Run("invalid values fall back to defaults", func(t *testing.T) {
		o := Options{MinSize: -1, MaxSize: 0, Overlap: -5}.normalize()
		assert.Equal(t, DefaultOptions(), o)
	})

	t.Run("min size clamped to max size", func(t *testing.T) {
		o := Options{MinSize: 500, MaxSize: 200, Overlap: 10}.normalize()
		assert.Equal(t, 200, o.MinSize)
	})
}

func TestChunker_UsesOptions(t *testing.T) {
	c := New(Options{MinSize: 10, MaxSize: 50, Overlap: 60})

	assert.Equal(t, 12, c.Options().Overlap)
	for _, chunk := range c.Split(article(5)) {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 50)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"terminators", "One. Two! Three? Four", []string{"One.", "Two!", "Three?", "Four"}},
		{"single newline stays", "line one\nline two", []string{"line one\nline two"}},
		{"newline before whitespace", "line one\n\nline two", []string{"line one\n", "line two"}},
		{"blank line", "para one.\n\npara two", []string{"para one.", "para two"}},
		{"no terminator", "just some words here", []string{"just some words here"}},
		{"abbreviation without space", "v1.2 is out", []string{"v1.2 is out"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSentences(tt.text))
		})
	}
}

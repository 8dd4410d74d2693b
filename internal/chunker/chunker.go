// Package chunker splits extracted document text into bounded, overlapping
// segments for embedding. Sizes are measured in characters (runes).
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultMinSize = 300
	DefaultMaxSize = 800
	DefaultOverlap = 100
)

type Options struct {
	MinSize int
	MaxSize int
	Overlap int
}

func DefaultOptions() Options {
	return Options{
		MinSize: DefaultMinSize,
		MaxSize: DefaultMaxSize,
		Overlap: DefaultOverlap,
	}
}

// normalize replaces out-of-range values so the split loop always terminates.
func (o Options) normalize() Options {
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.MinSize < 0 {
		o.MinSize = DefaultMinSize
	}
	if o.MinSize > o.MaxSize {
		o.MinSize = o.MaxSize
	}
	if o.Overlap < 0 {
		o.Overlap = DefaultOverlap
	}
	if o.Overlap >= o.MaxSize {
		o.Overlap = o.MaxSize / 4
	}
	return o
}

// Chunker carries per-deployment options so callers can inject it.
type Chunker struct {
	opts Options
}

func New(opts Options) *Chunker {
	return &Chunker{opts: opts.normalize()}
}

func (c *Chunker) Options() Options {
	return c.opts
}

func (c *Chunker) Split(text string) []string {
	return Split(text, c.opts)
}

// Split returns the ordered segments of text. Input no longer than MaxSize
// comes back as a single trimmed segment; blank input yields no segments.
func Split(text string, opts Options) []string {
	opts = opts.normalize()

	cleaned := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if cleaned == "" {
		return []string{}
	}
	if utf8.RuneCountInString(cleaned) <= opts.MaxSize {
		return []string{cleaned}
	}

	s := &splitter{opts: opts}
	for _, sentence := range splitSentences(cleaned) {
		s.add([]rune(sentence))
	}
	return s.finish()
}

type splitter struct {
	opts   Options
	buf    []rune
	chunks []string
}

func (s *splitter) add(sentence []rune) {
	fits := len(s.buf)+len(sentence)+1 <= s.opts.MaxSize

	switch {
	case fits:
		s.appendSentence(sentence)
	case len(s.buf) >= s.opts.MinSize:
		tail := s.tail(s.buf, len(s.buf))
		s.emit(s.buf)
		s.buf = tail
		s.appendSentence(sentence)
		s.drain()
	default:
		// A sentence longer than the window: take it whole, then cut.
		s.appendSentence(sentence)
		s.drain()
	}
}

func (s *splitter) appendSentence(sentence []rune) {
	if len(s.buf) > 0 {
		s.buf = append(s.buf, ' ')
	}
	s.buf = append(s.buf, sentence...)
}

// drain cuts MaxSize windows off the front of the buffer until it fits,
// seeding each remainder with the window's trailing overlap.
func (s *splitter) drain() {
	max := s.opts.MaxSize
	for len(s.buf) > max {
		s.emit(s.buf[:max])

		rest := make([]rune, 0, s.opts.Overlap+len(s.buf)-max)
		rest = append(rest, s.buf[max-s.opts.Overlap:max]...)
		rest = append(rest, s.buf[max:]...)
		s.buf = rest
	}
}

// tail copies the last Overlap runes before end.
func (s *splitter) tail(buf []rune, end int) []rune {
	if s.opts.Overlap == 0 {
		return nil
	}
	start := end - s.opts.Overlap
	if start < 0 {
		start = 0
	}
	out := make([]rune, end-start)
	copy(out, buf[start:end])
	return out
}

func (s *splitter) emit(buf []rune) {
	if chunk := strings.TrimSpace(string(buf)); chunk != "" {
		s.chunks = append(s.chunks, chunk)
	}
}

func (s *splitter) finish() []string {
	s.emit(s.buf)
	s.buf = nil
	if s.chunks == nil {
		return []string{}
	}
	return s.chunks
}

// splitSentences breaks text at whitespace that follows '.', '!', '?' or a
// newline. The whitespace itself is dropped.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); {
		if !unicode.IsSpace(runes[i]) {
			i++
			continue
		}

		j := i
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}

		// Leftmost cut inside the whitespace run; only '\n' can end a
		// sentence from within the run itself.
		for k := i; k < j; k++ {
			if k > 0 && isSentenceEnd(runes[k-1]) {
				sentences = append(sentences, string(runes[start:k]))
				start = j
				break
			}
		}
		i = j
	}

	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n':
		return true
	default:
		return false
	}
}

package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"helpdesk/internal/domain"
)

// SentenceSeparator splits after sentence-ending punctuation followed by whitespace.
const SentenceSeparator = `(?<=\. )`

// StartIndexKey is the metadata key set when start indexes are enabled.
const StartIndexKey = "start_index"

// DefaultSeparators is the coarsest-to-finest separator list.
var DefaultSeparators = []string{"\n\n", "\n", SentenceSeparator, " ", ""}

var sentenceEnd = regexp.MustCompile(`[.!?]\s`)

// RecursiveSplitter splits documents on an ordered list of separators,
// falling back to finer separators for pieces that are still too large.
// Sizes are measured in characters (runes).
type RecursiveSplitter struct {
	chunkSize     int
	overlap       int
	separators    []string
	addStartIndex bool
}

// Option configures a RecursiveSplitter.
type Option func(*RecursiveSplitter)

// WithSeparators replaces the default separator list.
func WithSeparators(separators []string) Option {
	return func(s *RecursiveSplitter) {
		if len(separators) > 0 {
			s.separators = separators
		}
	}
}

// WithStartIndex records each chunk's character offset in its metadata.
func WithStartIndex(enabled bool) Option {
	return func(s *RecursiveSplitter) {
		s.addStartIndex = enabled
	}
}

func NewRecursiveSplitter(chunkSize, overlap int, opts ...Option) (*RecursiveSplitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfig, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", domain.ErrInvalidConfig, overlap, chunkSize)
	}
	s := &RecursiveSplitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Split chunks every document in order. Chunks copy the parent's metadata.
func (s *RecursiveSplitter) Split(docs []domain.Document) ([]domain.Document, error) {
	var chunks []domain.Document
	for _, doc := range docs {
		chunks = append(chunks, s.SplitDocument(doc)...)
	}
	return chunks, nil
}

// SplitDocument chunks a single document. Blank documents yield no chunks.
func (s *RecursiveSplitter) SplitDocument(doc domain.Document) []domain.Document {
	text := doc.Content
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if utf8.RuneCountInString(text) <= s.chunkSize {
		return []domain.Document{s.chunk(doc, text, 0)}
	}

	pieces := s.splitSpan(text, span{0, len(text)}, s.separators)

	var chunks []domain.Document
	for i, core := range s.merge(text, pieces) {
		start := core.start
		if i > 0 && s.overlap > 0 {
			start = backRunes(text, core.start, s.overlap)
		}
		chunks = append(chunks, s.chunk(doc, text[start:core.end], utf8.RuneCountInString(text[:start])))
	}
	return chunks
}

func (s *RecursiveSplitter) chunk(doc domain.Document, content string, startIndex int) domain.Document {
	chunk := domain.NewDocument(content, doc.Metadata)
	if s.addStartIndex {
		chunk.Metadata[StartIndexKey] = startIndex
	}
	return chunk
}

// span is a byte range [start, end) of the document text.
type span struct {
	start, end int
}

func (sp span) runes(text string) int {
	return utf8.RuneCountInString(text[sp.start:sp.end])
}

// unitLimit leaves room for the overlap prefix carried by every chunk after the first.
func (s *RecursiveSplitter) unitLimit() int {
	return s.chunkSize - s.overlap
}

// splitSpan breaks sp into contiguous pieces of at most unitLimit characters.
// A piece is left oversized only when no finer separator remains.
func (s *RecursiveSplitter) splitSpan(text string, sp span, separators []string) []span {
	limit := s.unitLimit()
	if sp.runes(text) <= limit {
		return []span{sp}
	}

	sep, rest, ok := pickSeparator(text[sp.start:sp.end], separators)
	if !ok {
		return []span{sp}
	}

	var cuts []span
	switch sep {
	case "":
		cuts = splitRunes(text, sp, limit)
	case SentenceSeparator:
		cuts = splitSentences(text, sp)
	default:
		cuts = splitLiteral(text, sp, sep)
	}

	var pieces []span
	for _, cut := range cuts {
		if cut.runes(text) <= limit {
			pieces = append(pieces, cut)
			continue
		}
		pieces = append(pieces, s.splitSpan(text, cut, rest)...)
	}
	return pieces
}

// merge packs pieces greedily into chunk cores. The first core may use the
// full chunk size; later cores are reduced by the overlap prefix.
func (s *RecursiveSplitter) merge(text string, pieces []span) []span {
	var cores []span
	var current span
	size := 0
	budget := s.chunkSize

	for _, p := range pieces {
		n := p.runes(text)
		if size > 0 && size+n > budget {
			cores = append(cores, current)
			budget = s.unitLimit()
			size = 0
		}
		if size == 0 {
			current = p
		} else {
			current.end = p.end
		}
		size += n
	}
	if size > 0 {
		cores = append(cores, current)
	}
	return cores
}

// pickSeparator returns the first separator present in text and the finer
// separators after it.
func pickSeparator(text string, separators []string) (string, []string, bool) {
	for i, sep := range separators {
		switch {
		case sep == "":
			return sep, separators[i+1:], true
		case sep == SentenceSeparator:
			if sentenceEnd.MatchString(text) {
				return sep, separators[i+1:], true
			}
		case strings.Contains(text, sep):
			return sep, separators[i+1:], true
		}
	}
	return "", nil, false
}

// splitLiteral cuts after every occurrence of sep, keeping sep on the left piece.
func splitLiteral(text string, sp span, sep string) []span {
	var out []span
	from := sp.start
	for {
		i := strings.Index(text[from:sp.end], sep)
		if i < 0 {
			break
		}
		cut := from + i + len(sep)
		out = append(out, span{from, cut})
		from = cut
	}
	if from < sp.end {
		out = append(out, span{from, sp.end})
	}
	return out
}

func splitSentences(text string, sp span) []span {
	var out []span
	from := sp.start
	for _, m := range sentenceEnd.FindAllStringIndex(text[sp.start:sp.end], -1) {
		cut := sp.start + m[1]
		out = append(out, span{from, cut})
		from = cut
	}
	if from < sp.end {
		out = append(out, span{from, sp.end})
	}
	return out
}

func splitRunes(text string, sp span, limit int) []span {
	var out []span
	from := sp.start
	count := 0
	for i := range text[sp.start:sp.end] {
		if count == limit {
			out = append(out, span{from, sp.start + i})
			from = sp.start + i
			count = 0
		}
		count++
	}
	if from < sp.end {
		out = append(out, span{from, sp.end})
	}
	return out
}

// backRunes returns the byte offset n runes before offset, or 0.
func backRunes(text string, offset, n int) int {
	for ; n > 0 && offset > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(text[:offset])
		offset -= size
	}
	return offset
}

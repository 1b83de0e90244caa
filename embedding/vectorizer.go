package embedding

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// DefaultDimensions is the bucket count of the hashing vectorizer
const DefaultDimensions = 512

var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "all": {}, "also": {}, "am": {}, "an": {}, "and": {}, "any": {},
	"are": {}, "as": {}, "at": {}, "be": {}, "been": {}, "but": {}, "by": {}, "can": {},
	"do": {}, "for": {}, "from": {}, "get": {}, "has": {}, "have": {}, "he": {}, "her": {},
	"him": {}, "his": {}, "how": {}, "i": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "its": {}, "just": {}, "like": {}, "love": {}, "me": {}, "more": {}, "my": {},
	"no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "our": {}, "out": {}, "she": {},
	"so": {}, "some": {}, "than": {}, "that": {}, "the": {}, "their": {}, "them": {},
	"then": {}, "there": {}, "they": {}, "this": {}, "to": {}, "too": {}, "up": {},
	"us": {}, "very": {}, "was": {}, "we": {}, "were": {}, "what": {}, "when": {},
	"which": {}, "who": {}, "will": {}, "with": {}, "would": {}, "you": {}, "your": {},
	"im": {}, "dont": {},
}

// HashingVectorizer is a local term-frequency embedder: words are hashed into
// a fixed number of buckets and the result is L2 normalized.
type HashingVectorizer struct {
	dim int
}

// NewHashingVectorizer returns a vectorizer with dim buckets (default 512)
func NewHashingVectorizer(dim int) *HashingVectorizer {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &HashingVectorizer{dim: dim}
}

// Dimensions returns the vector length
func (h *HashingVectorizer) Dimensions() int { return h.dim }

func (h *HashingVectorizer) Embed(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *HashingVectorizer) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *HashingVectorizer) vector(text string) []float32 {
	v := make([]float32, h.dim)
	for _, tok := range Tokenize(text) {
		v[xxhash.Sum64String(tok)%uint64(h.dim)]++
	}
	n := norm(v)
	if n == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
	return v
}

// Tokenize lower-cases text and splits it into words, dropping stop words,
// apostrophes and single characters.
func Tokenize(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "'", "")
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// clampSimilarity maps a cosine into [0,1]; NaN becomes 0
func clampSimilarity(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// Package embedding turns profile bios into vectors and answers bio
// similarity queries against a corpus snapshot.
package embedding

import (
	"context"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	chromem "github.com/philippgille/chromem-go"
)

// Embedder generates text embeddings
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Ollama embeds through a local Ollama server
type Ollama struct {
	fn chromem.EmbeddingFunc
}

// NewOllama returns an Ollama embedder. An empty baseURL uses chromem's
// default of http://localhost:11434/api.
func NewOllama(model, baseURL string) *Ollama {
	return &Ollama{fn: chromem.NewEmbeddingFuncOllama(model, baseURL)}
}

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := o.fn(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	return v, nil
}

func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := o.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Cached memoizes an Embedder by exact text
type Cached struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached wraps inner with an LRU of the given size (default 10000)
func NewCached(inner Embedder, size int) (*Cached, error) {
	if size <= 0 {
		size = 10000
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			results[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embed batch: got %d vectors for %d texts", len(vecs), len(missTexts))
	}
	for i, idx := range missIdx {
		c.cache.Add(texts[idx], vecs[i])
		results[idx] = vecs[i]
	}
	return results, nil
}

// Len reports cached entries
func (c *Cached) Len() int { return c.cache.Len() }

// Cosine returns the cosine similarity of a and b, 0 when either is a zero
// vector or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

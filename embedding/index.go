package embedding

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"golang.org/x/sync/singleflight"

	"github.com/patra-app/matchrank/logging"
	"github.com/patra-app/matchrank/metrics"
	"github.com/patra-app/matchrank/model"
)

const collectionName = "bios"

// Index answers bio similarity queries against an immutable corpus snapshot.
// Refresh builds a new snapshot and swaps it in; readers holding the old one
// finish against it.
type Index struct {
	embedder Embedder
	snap     atomic.Pointer[snapshot]
	group    singleflight.Group
}

type snapshot struct {
	coll    *chromem.Collection
	bios    map[string]string
	vectors map[string][]float32
	builtAt time.Time
}

// NewIndex returns an empty index; the first query builds the corpus
func NewIndex(e Embedder) *Index {
	return &Index{embedder: e}
}

// Size returns the documents in the current snapshot
func (x *Index) Size() int {
	s := x.snap.Load()
	if s == nil {
		return 0
	}
	return s.coll.Count()
}

// BuiltAt is the build time of the current snapshot, zero before the first build
func (x *Index) BuiltAt() time.Time {
	if s := x.snap.Load(); s != nil {
		return s.builtAt
	}
	return time.Time{}
}

// Refresh rebuilds the corpus from profiles and swaps it in
func (x *Index) Refresh(ctx context.Context, profiles []model.Profile) (int, error) {
	s, err := x.build(ctx, profiles)
	if err != nil {
		metrics.CorpusRefreshes.WithLabelValues("error").Inc()
		return 0, err
	}
	x.snap.Store(s)
	metrics.CorpusRefreshes.WithLabelValues("success").Inc()
	metrics.CorpusSize.Set(float64(s.coll.Count()))
	return s.coll.Count(), nil
}

func (x *Index) ensure(ctx context.Context, profiles []model.Profile) (*snapshot, error) {
	if s := x.snap.Load(); s != nil {
		return s, nil
	}
	v, err, _ := x.group.Do("build", func() (interface{}, error) {
		if s := x.snap.Load(); s != nil {
			return s, nil
		}
		s, err := x.build(ctx, profiles)
		if err != nil {
			return nil, err
		}
		x.snap.Store(s)
		metrics.CorpusSize.Set(float64(s.coll.Count()))
		logging.Info().Int("documents", s.coll.Count()).Msg("bio corpus built")
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

func (x *Index) build(ctx context.Context, profiles []model.Profile) (*snapshot, error) {
	var ids, texts []string
	for _, p := range profiles {
		if strings.TrimSpace(p.Bio) == "" {
			continue
		}
		ids = append(ids, p.ID)
		texts = append(texts, p.Bio)
	}

	s := &snapshot{
		bios:    make(map[string]string, len(ids)),
		vectors: make(map[string][]float32, len(ids)),
		builtAt: time.Now(),
	}
	db := chromem.NewDB()
	coll, err := db.CreateCollection(collectionName, nil, chromem.EmbeddingFunc(x.embedder.Embed))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.coll = coll
	if len(texts) == 0 {
		return s, nil
	}

	vecs, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed corpus: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed corpus: got %d vectors for %d bios", len(vecs), len(texts))
	}

	docs := make([]chromem.Document, 0, len(ids))
	for i, id := range ids {
		// zero vectors cannot be normalized by the collection
		if norm(vecs[i]) == 0 {
			continue
		}
		docs = append(docs, chromem.Document{ID: id, Content: texts[i], Embedding: vecs[i]})
		s.bios[id] = texts[i]
		s.vectors[id] = vecs[i]
	}
	if len(docs) > 0 {
		if err := coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return nil, fmt.Errorf("add documents: %w", err)
		}
	}
	return s, nil
}

// Similarities returns the bio similarity in [0,1] between requester and each
// candidate. Candidates with an empty bio, or any candidate when the
// requester's bio is empty, score 0. Profiles whose bio changed since the last
// build are embedded on the fly.
func (x *Index) Similarities(ctx context.Context, requester *model.Profile, candidates []model.Profile) (map[string]float64, error) {
	out := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		out[c.ID] = 0
	}
	if requester == nil || strings.TrimSpace(requester.Bio) == "" || len(candidates) == 0 {
		return out, nil
	}

	corpus := make([]model.Profile, 0, len(candidates)+1)
	corpus = append(corpus, *requester)
	corpus = append(corpus, candidates...)
	s, err := x.ensure(ctx, corpus)
	if err != nil {
		return out, err
	}

	query, ok := s.vectors[requester.ID]
	if !ok || s.bios[requester.ID] != requester.Bio {
		if query, err = x.embedder.Embed(ctx, requester.Bio); err != nil {
			return out, fmt.Errorf("embed requester bio: %w", err)
		}
	}
	if norm(query) == 0 {
		return out, nil
	}

	indexed := map[string]float64{}
	if n := s.coll.Count(); n > 0 {
		results, err := s.coll.QueryEmbedding(ctx, query, n, nil, nil)
		if err != nil {
			return out, fmt.Errorf("query corpus: %w", err)
		}
		for _, r := range results {
			indexed[r.ID] = float64(r.Similarity)
		}
	}

	var staleIDs, staleBios []string
	for _, c := range candidates {
		if strings.TrimSpace(c.Bio) == "" {
			continue
		}
		if sim, ok := indexed[c.ID]; ok && s.bios[c.ID] == c.Bio {
			out[c.ID] = clampSimilarity(sim)
			continue
		}
		staleIDs = append(staleIDs, c.ID)
		staleBios = append(staleBios, c.Bio)
	}
	if len(staleBios) == 0 {
		return out, nil
	}

	vecs, err := x.embedder.EmbedBatch(ctx, staleBios)
	if err != nil {
		return out, fmt.Errorf("embed candidate bios: %w", err)
	}
	for i, id := range staleIDs {
		if i < len(vecs) {
			out[id] = clampSimilarity(Cosine(query, vecs[i]))
		}
	}
	return out, nil
}

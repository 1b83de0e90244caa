package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/patra-app/matchrank/config"
	"github.com/patra-app/matchrank/embedding"
	"github.com/patra-app/matchrank/notify"
	"github.com/patra-app/matchrank/personalization"
	"github.com/patra-app/matchrank/ranking"
	"github.com/patra-app/matchrank/rating"
	"github.com/patra-app/matchrank/scoring"
	"github.com/patra-app/matchrank/store"
)

// app holds the wired service graph
type app struct {
	cfg     *config.Config
	store   store.ProfileStore
	ranker  *ranking.Ranker
	hub     *notify.Hub
	closers []func() error
}

func (a *app) handler() http.Handler {
	return newRouter(routerDeps{cfg: a.cfg, store: a.store, ranker: a.ranker, hub: a.hub})
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, hub: notify.NewHub()}

	base, err := openStore(ctx, cfg.Store, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wire(base); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// wire builds everything above the base store
func (a *app) wire(base store.ProfileStore) error {
	cfg := a.cfg
	a.store = store.NewGuarded(base, store.GuardConfig{
		Timeout:          cfg.Store.Timeout,
		FailureThreshold: cfg.Store.BreakerThreshold,
		OpenTimeout:      cfg.Store.BreakerOpenFor,
	})

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return err
	}

	opts := ranking.Options{
		Scorer: scoring.Scorer{
			AgeDivisor:     cfg.Scoring.AgeDivisor,
			LocationPolicy: scoring.LocationPolicy(cfg.Scoring.LocationPolicy),
		},
		Weights: cfg.Scoring.Weights,
		Weighter: ranking.Weighter{
			Like:          cfg.Interaction.LikeWeight,
			Superlike:     cfg.Interaction.SuperlikeWeight,
			ReshowRejects: cfg.Interaction.ReshowRejects,
		},
		Rating:       rating.NewSystem(cfg.Rating.K, cfg.Rating.Initial),
		DefaultCount: cfg.Recommend.DefaultCount,
		MaxCount:     cfg.Recommend.MaxCount,
		LookbackDays: cfg.Interaction.LookbackDays,
		StatsDays:    cfg.Personalization.StatsDays,
		Similarity:   embedding.NewIndex(embedder),
		Notifier:     a.hub,
	}
	if cfg.Personalization.Enabled {
		log, err := personalization.Open(cfg.Personalization.Path)
		if err != nil {
			return fmt.Errorf("open personalization log: %w", err)
		}
		a.closers = append(a.closers, log.Close)
		opts.Log = log
	}

	a.ranker = ranking.NewRanker(a.store, opts)
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, a *app) (store.ProfileStore, error) {
	switch cfg.Driver {
	case "postgres":
		pg, err := store.OpenPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		if cfg.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return pg, nil
	default:
		if cfg.SeedFile == "" {
			return store.NewMemory(), nil
		}
		m, err := store.LoadMemory(cfg.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("load seed file: %w", err)
		}
		return m, nil
	}
}

func newEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	var inner embedding.Embedder
	switch cfg.Provider {
	case "ollama":
		inner = embedding.NewOllama(cfg.Model, cfg.BaseURL)
	default:
		inner = embedding.NewHashingVectorizer(cfg.Dimensions)
	}
	if cfg.CacheSize <= 0 {
		return inner, nil
	}
	cached, err := embedding.NewCached(inner, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return cached, nil
}

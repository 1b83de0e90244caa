package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/patra-app/matchrank/logging"
	"github.com/patra-app/matchrank/metrics"
	"github.com/patra-app/matchrank/model"
)

// GuardConfig configures the timeout and circuit breaker around a store
type GuardConfig struct {
	Name             string
	Timeout          time.Duration
	MaxRequests      uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
	FailureThreshold uint32
}

// DefaultGuardConfig returns production defaults
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Name:             "profile-store",
		Timeout:          5 * time.Second,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		OpenTimeout:      10 * time.Second,
		FailureThreshold: 5,
	}
}

// Guarded bounds every call to the inner store with a timeout and trips a
// circuit breaker after consecutive connectivity failures. Not-found and
// other domain errors do not count as failures.
type Guarded struct {
	inner   ProfileStore
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[any]
}

// NewGuarded wraps inner
func NewGuarded(inner ProfileStore, cfg GuardConfig) *Guarded {
	def := DefaultGuardConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	threshold := cfg.FailureThreshold

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitState.WithLabelValues(name).Set(float64(to))
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}
	metrics.CircuitState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))
	return &Guarded{
		inner:   inner,
		timeout: cfg.Timeout,
		cb:      gobreaker.NewCircuitBreaker[any](settings),
	}
}

// State reports the breaker state
func (g *Guarded) State() gobreaker.State { return g.cb.State() }

func (g *Guarded) call(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	v, err := g.cb.Execute(func() (any, error) {
		v, err := fn(ctx)
		if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return v, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return v, err
}

func (g *Guarded) GetUser(ctx context.Context, id string) (*model.Profile, error) {
	v, err := g.call(ctx, "get user", func(ctx context.Context) (any, error) {
		return g.inner.GetUser(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Profile), nil
}

func (g *Guarded) GetUsers(ctx context.Context, ids []string) (map[string]*model.Profile, error) {
	v, err := g.call(ctx, "get users", func(ctx context.Context) (any, error) {
		return g.inner.GetUsers(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]*model.Profile), nil
}

func (g *Guarded) GetAllUsers(ctx context.Context) ([]model.Profile, error) {
	v, err := g.call(ctx, "get all users", func(ctx context.Context) (any, error) {
		return g.inner.GetAllUsers(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Profile), nil
}

func (g *Guarded) GetInteractions(ctx context.Context, userID string, sinceDays int) ([]model.Interaction, error) {
	v, err := g.call(ctx, "get interactions", func(ctx context.Context) (any, error) {
		return g.inner.GetInteractions(ctx, userID, sinceDays)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Interaction), nil
}

func (g *Guarded) SaveInteraction(ctx context.Context, in model.Interaction) error {
	_, err := g.call(ctx, "save interaction", func(ctx context.Context) (any, error) {
		return nil, g.inner.SaveInteraction(ctx, in)
	})
	return err
}

func (g *Guarded) UpdateRating(ctx context.Context, userID string, rating float64) error {
	_, err := g.call(ctx, "update rating", func(ctx context.Context) (any, error) {
		return nil, g.inner.UpdateRating(ctx, userID, rating)
	})
	return err
}

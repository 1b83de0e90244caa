package store

import (
	"context"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"

	"github.com/patra-app/matchrank/model"
)

// ProfileLoader batches concurrent profile lookups into one GetUsers call
type ProfileLoader = dataloader.Loader[string, *model.Profile]

// NewLoader returns a loader for one unit of work. Loaders cache results, so
// create a fresh one per request.
func NewLoader(s ProfileStore) *ProfileLoader {
	return dataloader.NewBatchedLoader(profileBatchFn(s),
		dataloader.WithWait[string, *model.Profile](5*time.Millisecond))
}

func profileBatchFn(s ProfileStore) dataloader.BatchFunc[string, *model.Profile] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*model.Profile] {
		results := make([]*dataloader.Result[*model.Profile], len(keys))
		if len(keys) == 0 {
			return results
		}

		found, err := s.GetUsers(ctx, keys)
		for i, key := range keys {
			switch {
			case err != nil:
				results[i] = &dataloader.Result[*model.Profile]{Error: err}
			case found[key] == nil:
				results[i] = &dataloader.Result[*model.Profile]{Error: fmt.Errorf("user %s: %w", key, ErrNotFound)}
			default:
				results[i] = &dataloader.Result[*model.Profile]{Data: found[key]}
			}
		}
		return results
	}
}

type loaderKey struct{}

// WithLoader attaches a request-scoped loader to ctx
func WithLoader(ctx context.Context, l *ProfileLoader) context.Context {
	return context.WithValue(ctx, loaderKey{}, l)
}

// LoaderFor returns the loader attached to ctx, or a fresh one over s
func LoaderFor(ctx context.Context, s ProfileStore) *ProfileLoader {
	if l, ok := ctx.Value(loaderKey{}).(*ProfileLoader); ok && l != nil {
		return l
	}
	return NewLoader(s)
}

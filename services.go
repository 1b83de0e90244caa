package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/patra-app/matchrank/logging"
)

// httpService runs an http.Server under the supervisor. ListenAndServe
// blocks, so it runs in a goroutine and context cancellation triggers a
// graceful Shutdown.
type httpService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

func (s *httpService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logging.Info().Str("addr", s.server.Addr).Msg("http server listening")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (s *httpService) String() string { return "http-server" }

type corpusRefresh interface {
	RefreshCorpus(ctx context.Context) (int, error)
}

// corpusRefresher rebuilds the bio corpus at startup and then on every tick.
// A failed refresh keeps the previous corpus and is retried on the next tick.
type corpusRefresher struct {
	target   corpusRefresh
	interval time.Duration
}

func (c *corpusRefresher) Serve(ctx context.Context) error {
	c.refresh(ctx)
	if c.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.refresh(ctx)
		}
	}
}

func (c *corpusRefresher) refresh(ctx context.Context) {
	if _, err := c.target.RefreshCorpus(ctx); err != nil && ctx.Err() == nil {
		logging.Warn().Err(err).Msg("corpus refresh failed, keeping previous corpus")
	}
}

func (c *corpusRefresher) String() string { return "corpus-refresher" }

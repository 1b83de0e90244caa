// Package store provides access to profiles and the interaction log.
package store

import (
	"context"
	"errors"

	"github.com/patra-app/matchrank/model"
)

var (
	// ErrNotFound is returned when a profile does not exist
	ErrNotFound = errors.New("store: not found")
	// ErrUnavailable is returned when the backing store timed out, could not
	// be reached or the circuit breaker is open
	ErrUnavailable = errors.New("store: unavailable")
)

// ProfileStore is the contract the ranking service needs from storage.
// Implementations normalize every profile they return.
type ProfileStore interface {
	GetUser(ctx context.Context, id string) (*model.Profile, error)
	// GetUsers returns the profiles that exist; missing ids are absent from the map
	GetUsers(ctx context.Context, ids []string) (map[string]*model.Profile, error)
	GetAllUsers(ctx context.Context) ([]model.Profile, error)
	// GetInteractions returns interactions performed by userID in the last
	// sinceDays days, oldest first. sinceDays <= 0 means no limit.
	GetInteractions(ctx context.Context, userID string, sinceDays int) ([]model.Interaction, error)
	SaveInteraction(ctx context.Context, in model.Interaction) error
	UpdateRating(ctx context.Context, userID string, rating float64) error
}

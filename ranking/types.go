package ranking

import (
	"context"
	"time"

	"github.com/patra-app/matchrank/model"
	"github.com/patra-app/matchrank/personalization"
	"github.com/patra-app/matchrank/scoring"
)

// Status values of a Recommendations result
const (
	StatusOK           = "ok"
	StatusNoCandidates = "no_candidates"
)

// Warning codes reported by RecordInteraction
const (
	WarnRatingUpdate = "rating_update_failed"
	WarnEventLog     = "personalization_log_failed"
	WarnNotify       = "notification_failed"
)

// CandidateScore is one scored candidate for one request
type CandidateScore struct {
	CandidateID       string            `json:"candidate_id"`
	DisplayName       string            `json:"display_name"`
	Scores            scoring.SubScores `json:"scores"`
	InteractionWeight float64           `json:"interaction_weight"`
	Base              float64           `json:"base"`
	Adjusted          float64           `json:"adjusted"`
	Final             float64           `json:"score"`
	Rank              int               `json:"rank"`
}

// Recommendations is the ranked list returned to a user
type Recommendations struct {
	UserID      string           `json:"user_id"`
	Status      string           `json:"status"`
	Candidates  []CandidateScore `json:"recommendations"`
	PoolSize    int              `json:"pool_size"`
	GeneratedAt time.Time        `json:"timestamp"`
}

// InteractionResult reports what RecordInteraction did
type InteractionResult struct {
	UserID         string       `json:"user_id"`
	TargetID       string       `json:"target_id"`
	Action         model.Action `json:"action"`
	Timestamp      time.Time    `json:"timestamp"`
	RatingsUpdated bool         `json:"ratings_updated"`
	Warnings       []string     `json:"warnings,omitempty"`
}

// UserStats is the activity summary of one user
type UserStats struct {
	personalization.Stats
	Rating float64 `json:"rating"`
}

// CandidateScorer computes the pairwise sub-scores except bio and rating
type CandidateScorer interface {
	Score(requester, candidate *model.Profile) scoring.SubScores
}

// Similarity provides bio similarity against a refreshable corpus
type Similarity interface {
	Similarities(ctx context.Context, requester *model.Profile, candidates []model.Profile) (map[string]float64, error)
	Refresh(ctx context.Context, profiles []model.Profile) (int, error)
}

// EventLog is the personalization event log
type EventLog interface {
	Append(ctx context.Context, in model.Interaction) error
	Stats(ctx context.Context, userID string, days int) (personalization.Stats, error)
}

// Notifier tells a target about an interaction
type Notifier interface {
	Notify(ctx context.Context, in model.Interaction) error
}

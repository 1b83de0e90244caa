// Package ranking scores candidate profiles for a user and records the
// feedback that re-ranks them.
package ranking

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/patra-app/matchrank/logging"
	"github.com/patra-app/matchrank/metrics"
	"github.com/patra-app/matchrank/model"
	"github.com/patra-app/matchrank/personalization"
	"github.com/patra-app/matchrank/rating"
	"github.com/patra-app/matchrank/scoring"
	"github.com/patra-app/matchrank/store"
)

// Options configures a Ranker. Zero values fall back to defaults; the
// Similarity, Log and Notifier collaborators are optional.
type Options struct {
	Scorer       CandidateScorer
	Weights      scoring.Weights
	Weighter     Weighter
	Rating       rating.System
	DefaultCount int
	MaxCount     int
	// LookbackDays bounds the interaction history considered; 0 means all
	LookbackDays int
	StatsDays    int

	Similarity Similarity
	Log        EventLog
	Notifier   Notifier
}

// Ranker orchestrates scoring, ranking and interaction recording
type Ranker struct {
	store store.ProfileStore
	opts  Options
	now   func() time.Time
	newID func() string
}

// NewRanker returns a Ranker over s
func NewRanker(s store.ProfileStore, opts Options) *Ranker {
	if opts.Scorer == nil {
		opts.Scorer = scoring.NewScorer()
	}
	if opts.Weights == (scoring.Weights{}) {
		opts.Weights = scoring.DefaultWeights()
	}
	if opts.Weighter == (Weighter{}) {
		opts.Weighter = DefaultWeighter()
	}
	if opts.Rating == (rating.System{}) {
		opts.Rating = rating.NewSystem(0, 0)
	}
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = 10
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = 50
	}
	if opts.StatsDays <= 0 {
		opts.StatsDays = 30
	}
	return &Ranker{store: s, opts: opts, now: time.Now, newID: uuid.NewString}
}

// ClampCount applies the default and the server-side cap to a requested count
func (r *Ranker) ClampCount(count int) int {
	if count <= 0 {
		return r.opts.DefaultCount
	}
	if count > r.opts.MaxCount {
		return r.opts.MaxCount
	}
	return count
}

// Rank returns up to count candidates for userID, best first. An empty pool
// is not an error; the result carries StatusNoCandidates instead.
func (r *Ranker) Rank(ctx context.Context, userID string, count int) (res *Recommendations, err error) {
	start := time.Now()
	pool := 0
	defer func() {
		status := "error"
		if err == nil {
			status = res.Status
		}
		metrics.ObserveRecommendation(start, status, pool)
	}()

	requester, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return nil, storeErr("load requester", err)
	}
	all, err := r.store.GetAllUsers(ctx)
	if err != nil {
		return nil, storeErr("load candidates", err)
	}
	history, err := r.store.GetInteractions(ctx, userID, r.opts.LookbackDays)
	if err != nil {
		return nil, storeErr("load interactions", err)
	}
	latest := model.LatestActions(userID, history)

	candidates := make([]model.Profile, 0, len(all))
	for _, c := range all {
		if c.ID == userID || !requester.AcceptsAge(c.Age) {
			continue
		}
		if latest[c.ID] == model.ActionDislike && !r.opts.Weighter.ReshowRejects {
			continue
		}
		candidates = append(candidates, c)
	}
	candidates = scoring.FilterCompatible(requester, candidates)
	pool = len(candidates)

	res = &Recommendations{
		UserID:      userID,
		Status:      StatusOK,
		Candidates:  []CandidateScore{},
		PoolSize:    pool,
		GeneratedAt: r.now().UTC(),
	}
	if pool == 0 {
		res.Status = StatusNoCandidates
		return res, nil
	}

	bios := r.bioSimilarities(ctx, requester, candidates)
	minRating, span := ratingRange(candidates)

	scores := make([]CandidateScore, 0, pool)
	for i := range candidates {
		c := &candidates[i]
		scores = append(scores, r.scoreCandidate(ctx, requester, c, bios[c.ID], (c.Rating-minRating)/span))
	}
	scores = r.opts.Weighter.Apply(latest, scores)

	if n := r.ClampCount(count); len(scores) > n {
		scores = scores[:n]
	}
	res.Candidates = scores
	logging.Ctx(ctx).Debug().Str("user_id", userID).Int("pool", pool).Int("returned", len(scores)).
		Msg("ranked candidates")
	return res, nil
}

func (r *Ranker) bioSimilarities(ctx context.Context, requester *model.Profile, candidates []model.Profile) map[string]float64 {
	if r.opts.Similarity == nil {
		return nil
	}
	sims, err := r.opts.Similarity.Similarities(ctx, requester, candidates)
	if err != nil {
		metrics.IncBestEffortFailure("bio_similarity")
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", requester.ID).Msg("bio similarity unavailable, scoring without it")
		return nil
	}
	return sims
}

// ratingRange returns the minimum rating of the pool and the normalization
// denominator, which is at least 1
func ratingRange(pool []model.Profile) (minRating, span float64) {
	minRating, maxRating := math.Inf(1), math.Inf(-1)
	for _, p := range pool {
		minRating = math.Min(minRating, p.Rating)
		maxRating = math.Max(maxRating, p.Rating)
	}
	return minRating, math.Max(maxRating-minRating, 1)
}

// scoreCandidate computes one candidate's sub-scores and base score. A
// failure while scoring leaves that candidate with zero scores.
func (r *Ranker) scoreCandidate(ctx context.Context, requester, c *model.Profile, bio, ratingNorm float64) (cs CandidateScore) {
	cs = CandidateScore{CandidateID: c.ID, DisplayName: c.DisplayName, InteractionWeight: 1}
	defer func() {
		if p := recover(); p != nil {
			metrics.IncBestEffortFailure("candidate_score")
			logging.Ctx(ctx).Error().Str("user_id", requester.ID).Str("candidate_id", c.ID).
				Interface("panic", p).Msg("scoring candidate failed, using zero score")
			cs = CandidateScore{CandidateID: c.ID, DisplayName: c.DisplayName, InteractionWeight: 1}
		}
	}()

	s := r.opts.Scorer.Score(requester, c)
	s.Bio = scoring.Clamp01(bio)
	s.RatingNorm = scoring.Clamp01(ratingNorm)
	cs.Scores = s
	cs.Base = r.opts.Weights.Blend(s)
	cs.Adjusted = cs.Base
	cs.Final = scoring.Clamp01(cs.Base)
	return cs
}

// RecordInteraction stores userID's action on targetID and updates both
// ratings. Only parsing, lookup and the interaction write can fail the call;
// the rating update, event log and notification are best effort and report
// problems through Warnings.
func (r *Ranker) RecordInteraction(ctx context.Context, userID, targetID, rawAction string) (*InteractionResult, error) {
	action, err := model.ParseAction(rawAction)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, rawAction)
	}
	if userID == targetID {
		return nil, fmt.Errorf("%w: cannot interact with yourself", ErrInvalidTarget)
	}

	loader := store.LoaderFor(ctx, r.store)
	actorThunk := loader.Load(ctx, userID)
	targetThunk := loader.Load(ctx, targetID)
	actor, err := actorThunk()
	if err != nil {
		return nil, storeErr("load user", err)
	}
	target, err := targetThunk()
	if err != nil {
		return nil, storeErr("load target", err)
	}

	in := model.Interaction{
		ID:        r.newID(),
		ActorID:   userID,
		TargetID:  targetID,
		Action:    action,
		CreatedAt: r.now().UTC(),
	}
	if err := r.store.SaveInteraction(ctx, in); err != nil {
		return nil, storeErr("save interaction", err)
	}
	metrics.IncInteraction(string(action))

	res := &InteractionResult{
		UserID:    userID,
		TargetID:  targetID,
		Action:    action,
		Timestamp: in.CreatedAt,
	}
	log := logging.Ctx(ctx)

	newActor, newTarget := r.opts.Rating.Apply(actor.Rating, target.Rating, action)
	errActor := r.store.UpdateRating(ctx, userID, newActor)
	errTarget := r.store.UpdateRating(ctx, targetID, newTarget)
	if errActor != nil || errTarget != nil {
		metrics.IncBestEffortFailure("rating_update")
		log.Warn().AnErr("actor_err", errActor).AnErr("target_err", errTarget).
			Str("user_id", userID).Str("target_id", targetID).Msg("rating update failed")
		res.Warnings = append(res.Warnings, WarnRatingUpdate)
	} else {
		res.RatingsUpdated = true
	}

	if r.opts.Log != nil {
		if err := r.opts.Log.Append(ctx, in); err != nil {
			metrics.IncBestEffortFailure("event_log")
			log.Warn().Err(err).Str("interaction_id", in.ID).Msg("personalization log append failed")
			res.Warnings = append(res.Warnings, WarnEventLog)
		}
	}
	if r.opts.Notifier != nil {
		if err := r.opts.Notifier.Notify(ctx, in); err != nil {
			metrics.IncBestEffortFailure("notify")
			log.Warn().Err(err).Str("target_id", targetID).Msg("notification failed")
			res.Warnings = append(res.Warnings, WarnNotify)
		}
	}

	log.Info().Str("user_id", userID).Str("target_id", targetID).Str("action", string(action)).
		Float64("actor_rating", newActor).Float64("target_rating", newTarget).Msg("interaction recorded")
	return res, nil
}

// Stats summarizes userID's activity over the last days days (the
// configured default when days <= 0)
func (r *Ranker) Stats(ctx context.Context, userID string, days int) (*UserStats, error) {
	if days <= 0 {
		days = r.opts.StatsDays
	}
	u, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return nil, storeErr("load user", err)
	}
	out := &UserStats{Rating: u.Rating}

	if r.opts.Log != nil {
		st, err := r.opts.Log.Stats(ctx, userID, days)
		if err == nil {
			out.Stats = st
			return out, nil
		}
		metrics.IncBestEffortFailure("event_log")
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("personalization stats failed, falling back to store")
	}

	history, err := r.store.GetInteractions(ctx, userID, days)
	if err != nil {
		return nil, storeErr("load interactions", err)
	}
	out.Stats = personalization.FromInteractions(userID, days, history)
	return out, nil
}

// RefreshCorpus rebuilds the bio corpus from every profile and returns its size
func (r *Ranker) RefreshCorpus(ctx context.Context) (int, error) {
	if r.opts.Similarity == nil {
		return 0, nil
	}
	all, err := r.store.GetAllUsers(ctx)
	if err != nil {
		return 0, storeErr("load profiles", err)
	}
	n, err := r.opts.Similarity.Refresh(ctx, all)
	if err != nil {
		return 0, fmt.Errorf("%w: refresh corpus: %v", ErrInternal, err)
	}
	logging.Info().Int("documents", n).Msg("bio corpus refreshed")
	return n, nil
}

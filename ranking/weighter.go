package ranking

import (
	"sort"

	"github.com/patra-app/matchrank/model"
	"github.com/patra-app/matchrank/scoring"
)

// Weighter adjusts base scores by the requester's most recent action on
// each candidate
type Weighter struct {
	Like      float64
	Superlike float64
	// ReshowRejects keeps disliked candidates with weight 0 instead of
	// dropping them
	ReshowRejects bool
}

// DefaultWeighter returns the production multipliers
func DefaultWeighter() Weighter {
	return Weighter{Like: 2.0, Superlike: 3.0}
}

// Weight returns the multiplier for an action and whether the candidate stays
func (w Weighter) Weight(a model.Action) (float64, bool) {
	switch a {
	case model.ActionDislike:
		return 0, w.ReshowRejects
	case model.ActionLike:
		return w.Like, true
	case model.ActionSuperlike:
		return w.Superlike, true
	}
	return 1, true
}

// Apply sets InteractionWeight, Adjusted and Final on every score from its
// Base, drops rejected candidates and returns the list sorted and ranked.
// Adjusted is always derived from Base, so applying twice changes nothing.
func (w Weighter) Apply(latest map[string]model.Action, scores []CandidateScore) []CandidateScore {
	out := make([]CandidateScore, 0, len(scores))
	for _, cs := range scores {
		weight, keep := w.Weight(latest[cs.CandidateID])
		if !keep {
			continue
		}
		cs.InteractionWeight = weight
		cs.Adjusted = cs.Base * weight
		cs.Final = scoring.Clamp01(cs.Adjusted)
		out = append(out, cs)
	}
	SortScores(out)
	return out
}

// SortScores orders by Adjusted descending with ties broken by candidate id,
// then assigns 1-based ranks
func SortScores(scores []CandidateScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Adjusted != scores[j].Adjusted {
			return scores[i].Adjusted > scores[j].Adjusted
		}
		return scores[i].CandidateID < scores[j].CandidateID
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
}

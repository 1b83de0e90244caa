package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/patra-app/matchrank/model"
)

func baseScores() []CandidateScore {
	return []CandidateScore{
		{CandidateID: "a", Base: 0.5},
		{CandidateID: "b", Base: 0.4},
		{CandidateID: "c", Base: 0.3},
		{CandidateID: "d", Base: 0.2},
	}
}

func TestWeighterApply(t *testing.T) {
	w := DefaultWeighter()
	latest := map[string]model.Action{
		"a": model.ActionDislike,
		"c": model.ActionSuperlike,
		"d": model.ActionLike,
	}

	out := w.Apply(latest, baseScores())
	assert.Equal(t, []string{"c", "d", "b"}, ids(out))
	assert.InDelta(t, 0.9, out[0].Adjusted, 1e-12)
	assert.InDelta(t, 0.9, out[0].Final, 1e-12)
	assert.InDelta(t, 0.4, out[1].Adjusted, 1e-12)
	assert.Equal(t, 1.0, out[2].InteractionWeight)
	assert.Equal(t, []int{1, 2, 3}, []int{out[0].Rank, out[1].Rank, out[2].Rank})
}

func TestWeighterIsIdempotent(t *testing.T) {
	w := DefaultWeighter()
	latest := map[string]model.Action{"b": model.ActionLike, "d": model.ActionSuperlike}

	once := w.Apply(latest, baseScores())
	twice := w.Apply(latest, once)
	assert.Equal(t, once, twice)
}

func TestWeighterClampsFinal(t *testing.T) {
	w := DefaultWeighter()
	out := w.Apply(map[string]model.Action{"a": model.ActionSuperlike}, baseScores())
	assert.InDelta(t, 1.5, out[0].Adjusted, 1e-12)
	assert.Equal(t, 1.0, out[0].Final)
}

func TestWeighterReshowRejects(t *testing.T) {
	w := Weighter{Like: 2, Superlike: 3, ReshowRejects: true}
	out := w.Apply(map[string]model.Action{"a": model.ActionDislike}, baseScores())
	assert.Len(t, out, 4)
	assert.Equal(t, "a", out[3].CandidateID)
	assert.Zero(t, out[3].Final)
}

func TestSortScoresTieBreak(t *testing.T) {
	s := []CandidateScore{{CandidateID: "z", Adjusted: 0.5}, {CandidateID: "m", Adjusted: 0.5}, {CandidateID: "a", Adjusted: 0.1}}
	SortScores(s)
	assert.Equal(t, []string{"m", "z", "a"}, ids(s))
}

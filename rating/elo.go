// Package rating implements the pairwise Elo-style rating kept for every user.
package rating

import (
	"math"

	"github.com/patra-app/matchrank/model"
)

// DefaultK is the update step size
const DefaultK = 32.0

// Expected is the Elo expected score of a player rated a against one rated b
func Expected(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/400))
}

// Update computes new ratings for two players given their outcome scores.
// It is pure; persisting the result is up to the caller.
func Update(ra, rb, sa, sb, k float64) (newA, newB float64) {
	newA = ra + k*(sa-Expected(ra, rb))
	newB = rb + k*(sb-Expected(rb, ra))
	return newA, newB
}

// Outcome maps an interaction to the (actor, target) outcome scores.
// Likes of either kind count as a win for the actor, a dislike as a win for the target.
func Outcome(action model.Action) (actor, target float64) {
	if action.Positive() {
		return 1, 0
	}
	return 0, 1
}

// System bundles the configured constants
type System struct {
	K       float64
	Initial float64
}

// NewSystem returns a System, substituting defaults for non-positive values
func NewSystem(k, initial float64) System {
	if k <= 0 {
		k = DefaultK
	}
	if initial <= 0 {
		initial = model.DefaultRating
	}
	return System{K: k, Initial: initial}
}

// Apply returns the actor's and target's ratings after the given interaction.
// A zero rating is treated as unrated and replaced by the initial rating.
func (s System) Apply(actor, target float64, action model.Action) (float64, float64) {
	if actor == 0 {
		actor = s.Initial
	}
	if target == 0 {
		target = s.Initial
	}
	sa, sb := Outcome(action)
	return Update(actor, target, sa, sb, s.K)
}

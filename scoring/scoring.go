// Package scoring holds the pure similarity functions that make up a
// candidate's compatibility sub-scores. Every scorer returns a value in [0,1].
package scoring

import (
	"math"
	"strings"

	"github.com/patra-app/matchrank/model"
)

// DefaultAgeDivisor is the age gap at which the age score reaches zero
const DefaultAgeDivisor = 10.0

// LocationPolicy selects how two locations are compared
type LocationPolicy string

const (
	// LocationStrict scores 1.0 for the same city, 0.5 for the same state, else 0
	LocationStrict LocationPolicy = "strict"
	// LocationSoft scores 1.0 for identical strings, 0.6 for any shared token, else 0.1
	LocationSoft LocationPolicy = "soft"
)

// Age scores how close two ages are: 1 - |a-b|/divisor, floored at 0
func Age(a, b int, divisor float64) float64 {
	if divisor <= 0 {
		divisor = DefaultAgeDivisor
	}
	diff := math.Abs(float64(a - b))
	return math.Max(0, 1-diff/divisor)
}

// Location compares two locations under the given policy.
// A missing location on either side scores 0.
func Location(a, b model.Location, policy LocationPolicy) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	if policy == LocationSoft {
		return softLocation(a.Raw, b.Raw)
	}

	if a.City != "" && strings.EqualFold(a.City, b.City) {
		return 1.0
	}
	if a.State != "" && strings.EqualFold(a.State, b.State) {
		return 0.5
	}
	return 0
}

func softLocation(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}
	// Partial match on any shared word
	words := strings.FieldsFunc(a, isLocationSeparator)
	other := make(map[string]bool)
	for _, w := range strings.FieldsFunc(b, isLocationSeparator) {
		other[w] = true
	}
	for _, w := range words {
		if other[w] {
			return 0.6
		}
	}
	return 0.1
}

func isLocationSeparator(r rune) bool {
	return r == ' ' || r == ',' || r == '\t'
}

// Jaccard is |A∩B| / |A∪B|, defined as 0 when both sets are empty
func Jaccard(a, b model.Tags) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for k := range small {
		if _, ok := large[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Clamp01 bounds v to [0,1]; NaN becomes 0
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Scorer computes the profile-only sub-scores between a requester and a
// candidate. Bio similarity and rating normalization depend on the whole
// candidate pool and are filled in by the caller.
type Scorer struct {
	AgeDivisor     float64
	LocationPolicy LocationPolicy
}

// NewScorer returns a Scorer with the default divisor and strict location policy
func NewScorer() Scorer {
	return Scorer{AgeDivisor: DefaultAgeDivisor, LocationPolicy: LocationStrict}
}

// Score fills the age, location, interest and orientation sub-scores
func (s Scorer) Score(requester, candidate *model.Profile) SubScores {
	return SubScores{
		Age:         Age(requester.Age, candidate.Age, s.AgeDivisor),
		Location:    Location(requester.Location, candidate.Location, s.LocationPolicy),
		Interests:   Jaccard(requester.Interests, candidate.Interests),
		Orientation: Jaccard(requester.Orientation, candidate.Orientation),
	}
}

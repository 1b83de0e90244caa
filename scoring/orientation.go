package scoring

import (
	"strings"

	"github.com/patra-app/matchrank/model"
)

// Orientation tags that are open to every gender
var inclusiveOrientations = map[string]bool{
	"bisexual":   true,
	"pansexual":  true,
	"friendship": true,
	"fun":        true,
}

// Compatible applies the orientation rule table: does a user with the given
// orientation tags and gender want to see a candidate of candidateGender?
// An empty tag set places no restriction.
func Compatible(orientation model.Tags, selfGender, candidateGender string) bool {
	if len(orientation) == 0 {
		return true
	}
	self := model.NormalizeGender(selfGender)
	other := model.NormalizeGender(candidateGender)

	for orient := range orientation {
		switch {
		case inclusiveOrientations[orient]:
			return true
		case orient == "straight":
			if (self == "male" && other == "female") || (self == "female" && other == "male") {
				return true
			}
		case orient == "gay":
			if self != "" && self == other {
				return true
			}
		case orient == "lesbian":
			if self == "female" && other == "female" {
				return true
			}
		case other != "" && strings.Contains(other, orient):
			// Direct gender tag such as "female" or "non-binary"
			return true
		}
	}
	return false
}

// FilterCompatible keeps the candidates that pass the requester's orientation
// rules. When nobody passes, the whole pool is returned unchanged so the
// feed is never empty because of this filter alone.
func FilterCompatible(requester *model.Profile, pool []model.Profile) []model.Profile {
	if len(requester.Orientation) == 0 {
		return pool
	}
	kept := make([]model.Profile, 0, len(pool))
	for _, c := range pool {
		if Compatible(requester.Orientation, requester.Gender, c.Gender) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return pool
	}
	return kept
}

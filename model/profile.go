package model

// DefaultRating is the rating every profile starts with until its first interaction.
const DefaultRating = 1200.0

// Age bounds applied at the store boundary
const (
	MinAge     = 18
	MaxAge     = 80
	DefaultAge = 25
)

// Location is a free-text location with its parsed "City, State" parts
type Location struct {
	Raw   string `json:"raw" yaml:"raw"`
	City  string `json:"city" yaml:"city"`
	State string `json:"state" yaml:"state"`
}

// IsZero reports whether no location was given at all
func (l Location) IsZero() bool {
	return l.Raw == "" && l.City == "" && l.State == ""
}

// Profile represents a user's profile with the attributes used for matching
type Profile struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	Age          int      `json:"age"`
	Bio          string   `json:"bio"`
	Location     Location `json:"location"`
	Interests    Tags     `json:"interests"`
	Gender       string   `json:"gender"`
	Orientation  Tags     `json:"orientation"`
	AgeMin       int      `json:"age_min,omitempty"`
	AgeMax       int      `json:"age_max,omitempty"`
	Rating       float64  `json:"rating"`
	Completeness float64  `json:"profile_completeness"`
	Photos       []string `json:"photos,omitempty"`
}

// AcceptsAge reports whether age falls within the profile's optional
// candidate age preference. Unset bounds accept everything.
func (p *Profile) AcceptsAge(age int) bool {
	if p.AgeMin > 0 && age < p.AgeMin {
		return false
	}
	if p.AgeMax > 0 && age > p.AgeMax {
		return false
	}
	return true
}

// RawProfile is a profile as it comes off the wire or out of a store row,
// before any normalization. Interests and Orientation may be nil, a
// comma/semicolon separated string, a list or a JSON array.
type RawProfile struct {
	ID           string   `json:"id" yaml:"id"`
	DisplayName  string   `json:"display_name" yaml:"display_name"`
	Age          int      `json:"age" yaml:"age"`
	Bio          string   `json:"bio" yaml:"bio"`
	Location     string   `json:"location" yaml:"location"`
	Interests    any      `json:"interests" yaml:"interests"`
	Gender       string   `json:"gender" yaml:"gender"`
	Orientation  any      `json:"orientation" yaml:"orientation"`
	AgeMin       int      `json:"age_min" yaml:"age_min"`
	AgeMax       int      `json:"age_max" yaml:"age_max"`
	Rating       *float64 `json:"rating" yaml:"rating"`
	Completeness float64  `json:"profile_completeness" yaml:"profile_completeness"`
	Photos       []string `json:"photos" yaml:"photos"`
}

// Normalize converts a raw record into the canonical Profile. This is the
// single place where missing or oddly typed fields are handled.
func (r RawProfile) Normalize() Profile {
	rating := DefaultRating
	if r.Rating != nil {
		rating = *r.Rating
	}
	name := r.DisplayName
	if name == "" {
		name = "User " + r.ID
	}
	return Profile{
		ID:           r.ID,
		DisplayName:  name,
		Age:          ClampAge(r.Age),
		Bio:          r.Bio,
		Location:     ParseLocation(r.Location),
		Interests:    NormalizeTags(r.Interests),
		Gender:       NormalizeGender(r.Gender),
		Orientation:  NormalizeTags(r.Orientation),
		AgeMin:       r.AgeMin,
		AgeMax:       r.AgeMax,
		Rating:       rating,
		Completeness: clamp01(r.Completeness),
		Photos:       r.Photos,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package scoring

import (
	"fmt"
	"math"
)

// Weights is the blend applied to the sub-scores. The weights must sum to 1.
type Weights struct {
	Age         float64 `koanf:"age" validate:"gte=0,lte=1"`
	Location    float64 `koanf:"location" validate:"gte=0,lte=1"`
	Interests   float64 `koanf:"interests" validate:"gte=0,lte=1"`
	Orientation float64 `koanf:"orientation" validate:"gte=0,lte=1"`
	Bio         float64 `koanf:"bio" validate:"gte=0,lte=1"`
	Rating      float64 `koanf:"rating" validate:"gte=0,lte=1"`
}

// DefaultWeights returns the production weight table
func DefaultWeights() Weights {
	return Weights{
		Age:         0.25,
		Location:    0.15,
		Interests:   0.25,
		Orientation: 0.10,
		Bio:         0.15,
		Rating:      0.10,
	}
}

// Sum adds up all weights
func (w Weights) Sum() float64 {
	return w.Age + w.Location + w.Interests + w.Orientation + w.Bio + w.Rating
}

// Validate checks that no weight is negative and that the table sums to 1
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"age": w.Age, "location": w.Location, "interests": w.Interests,
		"orientation": w.Orientation, "bio": w.Bio, "rating": w.Rating,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s is negative: %v", name, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

// SubScores are the normalized [0,1] components of one candidate's score
type SubScores struct {
	Age         float64 `json:"age_score"`
	Location    float64 `json:"location_score"`
	Interests   float64 `json:"interest_score"`
	Orientation float64 `json:"orientation_score"`
	Bio         float64 `json:"bio_score"`
	RatingNorm  float64 `json:"rating_norm"`
}

// Blend returns Σ weight_i * subscore_i
func (w Weights) Blend(s SubScores) float64 {
	return w.Age*s.Age +
		w.Location*s.Location +
		w.Interests*s.Interests +
		w.Orientation*s.Orientation +
		w.Bio*s.Bio +
		w.Rating*s.RatingNorm
}

package rating

import (
	"testing"

	"github.com/patra-app/matchrank/model"
	"github.com/stretchr/testify/assert"
)

func TestExpected(t *testing.T) {
	assert.InDelta(t, 0.5, Expected(1200, 1200), 1e-12)
	assert.InDelta(t, 1.0, Expected(1600, 1200)+Expected(1200, 1600), 1e-12)
	assert.Greater(t, Expected(1400, 1200), 0.5)
	assert.InDelta(t, 1/(1+0.1), Expected(1600, 1200), 1e-12)
}

func TestUpdate(t *testing.T) {
	t.Run("Equal ratings move by K/2", func(t *testing.T) {
		a, b := Update(1200, 1200, 1, 0, 32)
		assert.InDelta(t, 1216, a, 1e-9)
		assert.InDelta(t, 1184, b, 1e-9)
	})

	t.Run("Zero sum for complementary outcomes", func(t *testing.T) {
		for _, pair := range [][2]float64{{1200, 1500}, {1800, 1100}, {1000, 1000}} {
			a, b := Update(pair[0], pair[1], 1, 0, DefaultK)
			assert.InDelta(t, 0, (a-pair[0])+(b-pair[1]), 1e-9)
		}
	})

	t.Run("Winner gains, loser drops, both bounded by K", func(t *testing.T) {
		a, b := Update(1300, 1250, 0, 1, DefaultK)
		assert.Less(t, a, 1300.0)
		assert.Greater(t, b, 1250.0)
		assert.LessOrEqual(t, 1300-a, DefaultK)
		assert.LessOrEqual(t, b-1250, DefaultK)
	})

	t.Run("Favourite gains less than underdog", func(t *testing.T) {
		high, _ := Update(1600, 1200, 1, 0, DefaultK)
		low, _ := Update(1200, 1600, 1, 0, DefaultK)
		assert.Less(t, high-1600, low-1200)
	})

	t.Run("Deterministic", func(t *testing.T) {
		a1, b1 := Update(1234, 1456, 1, 0, DefaultK)
		a2, b2 := Update(1234, 1456, 1, 0, DefaultK)
		assert.Equal(t, a1, a2)
		assert.Equal(t, b1, b2)
	})
}

func TestOutcome(t *testing.T) {
	a, b := Outcome(model.ActionLike)
	assert.Equal(t, [2]float64{1, 0}, [2]float64{a, b})
	a, b = Outcome(model.ActionSuperlike)
	assert.Equal(t, [2]float64{1, 0}, [2]float64{a, b})
	a, b = Outcome(model.ActionDislike)
	assert.Equal(t, [2]float64{0, 1}, [2]float64{a, b})
}

func TestSystem(t *testing.T) {
	s := NewSystem(0, 0)
	assert.Equal(t, DefaultK, s.K)
	assert.Equal(t, model.DefaultRating, s.Initial)

	actor, target := s.Apply(0, 1200, model.ActionLike)
	assert.InDelta(t, 1216, actor, 1e-9)
	assert.InDelta(t, 1184, target, 1e-9)

	actor, target = NewSystem(16, 1500).Apply(1500, 1500, model.ActionDislike)
	assert.InDelta(t, 1492, actor, 1e-9)
	assert.InDelta(t, 1508, target, 1e-9)
}

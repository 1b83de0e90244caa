package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patra-app/matchrank/store"
)

func TestGenerateIsDeterministic(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	o := genOptions{Count: 50, Seed: 7, InteractionRate: 3, Now: now}

	a, b := generate(o), generate(o)
	assert.Equal(t, a, b)
	assert.Len(t, a.Profiles, 50)
	assert.Equal(t, "Test User 1", a.Profiles[0].DisplayName)
	assert.Equal(t, "Austin, TX", a.Profiles[1].Location)

	for _, in := range a.Interactions {
		assert.NotEqual(t, in.ActorID, in.TargetID)
		assert.False(t, in.CreatedAt.After(now))
	}

	o.Seed = 8
	assert.NotEqual(t, a.Profiles, generate(o).Profiles)
}

func TestGenerateSingleUserHasNoInteractions(t *testing.T) {
	ds := generate(genOptions{Count: 1, Seed: 1, InteractionRate: 10, Now: time.Now()})
	assert.Len(t, ds.Profiles, 1)
	assert.Empty(t, ds.Interactions)
}

func TestExportLoadsIntoMemoryStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	ds := generate(genOptions{Count: 20, Seed: 3, InteractionRate: 2, Now: time.Now()})
	require.NoError(t, exportYAML(path, ds))

	m, err := store.LoadMemory(path)
	require.NoError(t, err)
	all, err := m.GetAllUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 20)

	u, err := m.GetUser(context.Background(), "user-0001")
	require.NoError(t, err)
	assert.Equal(t, "Austin", u.Location.City)
	assert.True(t, u.Interests.Has("hiking"))
	assert.Equal(t, 1200.0, u.Rating)
}

func TestValidateOptions(t *testing.T) {
	assert.Error(t, genOptions{Count: 0}.validate())
	assert.Error(t, genOptions{Count: 5, InteractionRate: -1}.validate())
	assert.NoError(t, genOptions{Count: 5, InteractionRate: 1}.validate())
}

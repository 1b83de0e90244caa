package store

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patra-app/matchrank/model"
)

func sampleProfiles() []model.Profile {
	return []model.Profile{
		{ID: "U1", DisplayName: "Alice", Age: 28, Rating: 1200},
		{ID: "U2", DisplayName: "Bob", Age: 29, Rating: 1250},
		{ID: "U3", DisplayName: "Cara", Age: 45, Rating: 1100},
	}
}

// ============================================================================
// Memory
// ============================================================================

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(sampleProfiles()...)

	t.Run("GetUser", func(t *testing.T) {
		p, err := m.GetUser(ctx, "U2")
		require.NoError(t, err)
		assert.Equal(t, "Bob", p.DisplayName)

		_, err = m.GetUser(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("GetUsers skips missing ids", func(t *testing.T) {
		got, err := m.GetUsers(ctx, []string{"U1", "U3", "missing"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "Cara", got["U3"].DisplayName)
	})

	t.Run("GetAllUsers sorted by id", func(t *testing.T) {
		all, err := m.GetAllUsers(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"U1", "U2", "U3"}, []string{all[0].ID, all[1].ID, all[2].ID})
	})

	t.Run("UpdateRating", func(t *testing.T) {
		require.NoError(t, m.UpdateRating(ctx, "U1", 1216))
		p, _ := m.GetUser(ctx, "U1")
		assert.Equal(t, 1216.0, p.Rating)
		assert.ErrorIs(t, m.UpdateRating(ctx, "ghost", 1), ErrNotFound)
	})

	t.Run("Interactions filtered by actor and window", func(t *testing.T) {
		now := time.Now()
		require.NoError(t, m.SaveInteraction(ctx, model.Interaction{ID: "1", ActorID: "U1", TargetID: "U2", Action: model.ActionLike, CreatedAt: now}))
		require.NoError(t, m.SaveInteraction(ctx, model.Interaction{ID: "2", ActorID: "U1", TargetID: "U3", Action: model.ActionDislike, CreatedAt: now.AddDate(0, 0, -40)}))
		require.NoError(t, m.SaveInteraction(ctx, model.Interaction{ID: "3", ActorID: "U2", TargetID: "U1", Action: model.ActionLike, CreatedAt: now}))

		all, err := m.GetInteractions(ctx, "U1", 0)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "2", all[0].ID)

		recent, err := m.GetInteractions(ctx, "U1", 30)
		require.NoError(t, err)
		require.Len(t, recent, 1)
		assert.Equal(t, "1", recent[0].ID)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := m.GetAllUsers(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLoadMemory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	seed := `
profiles:
  - id: U1
    display_name: Alice
    age: 28
    bio: Hiking and coffee
    location: Austin, TX
    interests: "Hiking, Coffee"
    gender: Female
    orientation: [straight]
  - id: U2
    age: 12
    interests: [music]
    rating: 1300
interactions:
  - user_id: U1
    target_id: U2
    action: Reject
    timestamp: 2024-01-02T15:04:05Z
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	m, err := LoadMemory(path)
	require.NoError(t, err)

	u1, err := m.GetUser(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "Austin", u1.Location.City)
	assert.Equal(t, "TX", u1.Location.State)
	assert.True(t, u1.Interests.Has("hiking"))
	assert.True(t, u1.Orientation.Has("straight"))
	assert.Equal(t, "female", u1.Gender)
	assert.Equal(t, model.DefaultRating, u1.Rating)

	u2, _ := m.GetUser(context.Background(), "U2")
	assert.Equal(t, "User U2", u2.DisplayName)
	assert.Equal(t, model.MinAge, u2.Age)
	assert.Equal(t, 1300.0, u2.Rating)

	ins, err := m.GetInteractions(context.Background(), "U1", 0)
	require.NoError(t, err)
	require.Len(t, ins, 1)
	assert.Equal(t, model.ActionDislike, ins[0].Action)
}

func TestLoadMemoryErrors(t *testing.T) {
	_, err := LoadMemory(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interactions:\n  - user_id: a\n    target_id: b\n    action: wink\n"), 0o600))
	_, err = LoadMemory(path)
	assert.ErrorIs(t, err, model.ErrUnknownAction)
}

// ============================================================================
// Guarded
// ============================================================================

type flakyStore struct {
	*Memory
	slow  time.Duration
	calls atomic.Int32
}

func (f *flakyStore) GetAllUsers(ctx context.Context) ([]model.Profile, error) {
	f.calls.Add(1)
	if f.slow > 0 {
		select {
		case <-time.After(f.slow):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.Memory.GetAllUsers(ctx)
}

func TestGuardedPassesThrough(t *testing.T) {
	g := NewGuarded(NewMemory(sampleProfiles()...), GuardConfig{})
	ctx := context.Background()

	all, err := g.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = g.GetUser(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnavailable)

	users, err := g.GetUsers(ctx, []string{"U1"})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, g.SaveInteraction(ctx, model.Interaction{ID: "x", ActorID: "U1", TargetID: "U2", Action: model.ActionLike, CreatedAt: time.Now()}))
	ins, err := g.GetInteractions(ctx, "U1", 0)
	require.NoError(t, err)
	assert.Len(t, ins, 1)
	require.NoError(t, g.UpdateRating(ctx, "U1", 1300))
}

func TestGuardedTimeoutIsUnavailable(t *testing.T) {
	f := &flakyStore{Memory: NewMemory(), slow: 200 * time.Millisecond}
	g := NewGuarded(f, GuardConfig{Timeout: 10 * time.Millisecond})

	_, err := g.GetAllUsers(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGuardedNotFoundDoesNotTrip(t *testing.T) {
	g := NewGuarded(NewMemory(), GuardConfig{FailureThreshold: 2})
	for i := 0; i < 5; i++ {
		_, err := g.GetUser(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestGuardedOpensCircuit(t *testing.T) {
	f := &flakyStore{Memory: NewMemory(sampleProfiles()...), slow: 50 * time.Millisecond}
	g := NewGuarded(f, GuardConfig{Timeout: 5 * time.Millisecond, FailureThreshold: 2, OpenTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := g.GetAllUsers(ctx)
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	before := f.calls.Load()
	_, err := g.GetAllUsers(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, before, f.calls.Load(), "open circuit must not reach the store")
}

// ============================================================================
// Loader
// ============================================================================

type countingStore struct {
	*Memory
	batches atomic.Int32
}

func (c *countingStore) GetUsers(ctx context.Context, ids []string) (map[string]*model.Profile, error) {
	c.batches.Add(1)
	return c.Memory.GetUsers(ctx, ids)
}

func TestLoaderBatches(t *testing.T) {
	s := &countingStore{Memory: NewMemory(sampleProfiles()...)}
	loader := NewLoader(s)
	ctx := context.Background()

	a := loader.Load(ctx, "U1")
	b := loader.Load(ctx, "U2")
	missing := loader.Load(ctx, "ghost")

	pa, err := a()
	require.NoError(t, err)
	pb, err := b()
	require.NoError(t, err)
	_, err = missing()

	assert.Equal(t, "Alice", pa.DisplayName)
	assert.Equal(t, "Bob", pb.DisplayName)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), s.batches.Load())
}

func TestLoaderPropagatesStoreErrors(t *testing.T) {
	f := &flakyStore{Memory: NewMemory()}
	g := NewGuarded(failingUsers{f}, GuardConfig{})
	_, err := NewLoader(g).Load(context.Background(), "U1")()
	assert.ErrorIs(t, err, ErrUnavailable)
}

type failingUsers struct{ *flakyStore }

func (failingUsers) GetUsers(context.Context, []string) (map[string]*model.Profile, error) {
	return nil, ErrUnavailable
}

func TestLoaderFromContext(t *testing.T) {
	s := NewMemory(sampleProfiles()...)
	l := NewLoader(s)
	ctx := WithLoader(context.Background(), l)
	assert.Same(t, l, LoaderFor(ctx, s))
	assert.NotNil(t, LoaderFor(context.Background(), s))
	assert.NotSame(t, l, LoaderFor(context.Background(), s))
}

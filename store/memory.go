package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/patra-app/matchrank/model"
)

// Memory is an in-process ProfileStore for development and tests
type Memory struct {
	mu           sync.RWMutex
	profiles     map[string]model.Profile
	interactions []model.Interaction
	now          func() time.Time
}

// NewMemory returns a store holding the given profiles
func NewMemory(profiles ...model.Profile) *Memory {
	m := &Memory{profiles: make(map[string]model.Profile), now: time.Now}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

// SeedFile is the YAML layout accepted by LoadMemory
type SeedFile struct {
	Profiles     []model.RawProfile  `yaml:"profiles"`
	Interactions []model.Interaction `yaml:"interactions"`
}

// LoadMemory reads a YAML seed file into a new Memory store
func LoadMemory(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	m := NewMemory()
	for _, raw := range seed.Profiles {
		if raw.ID == "" {
			return nil, fmt.Errorf("seed file: profile without id")
		}
		m.profiles[raw.ID] = raw.Normalize()
	}
	for _, in := range seed.Interactions {
		action, err := model.ParseAction(string(in.Action))
		if err != nil {
			return nil, fmt.Errorf("seed file: interaction %s->%s: %w", in.ActorID, in.TargetID, err)
		}
		in.Action = action
		if in.CreatedAt.IsZero() {
			in.CreatedAt = m.now()
		}
		m.interactions = append(m.interactions, in)
	}
	return m, nil
}

// Put inserts or replaces a profile
func (m *Memory) Put(p model.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

func (m *Memory) GetUser(ctx context.Context, id string) (*model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) GetUsers(ctx context.Context, ids []string) (map[string]*model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*model.Profile, len(ids))
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (m *Memory) GetAllUsers(ctx context.Context) ([]model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetInteractions(ctx context.Context, userID string, sinceDays int) ([]model.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var cutoff time.Time
	if sinceDays > 0 {
		cutoff = m.now().AddDate(0, 0, -sinceDays)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Interaction
	for _, in := range m.interactions {
		if in.ActorID != userID || in.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, in)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) SaveInteraction(ctx context.Context, in model.Interaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, in)
	return nil
}

func (m *Memory) UpdateRating(ctx context.Context, userID string, rating float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	p.Rating = rating
	m.profiles[userID] = p
	return nil
}

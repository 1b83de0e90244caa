package model

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// Action is the feedback a user gives on a candidate
type Action string

const (
	ActionLike      Action = "like"
	ActionDislike   Action = "dislike"
	ActionSuperlike Action = "superlike"
)

// ErrUnknownAction is returned by ParseAction for anything outside the recognized set
var ErrUnknownAction = errors.New("unknown action")

// ParseAction maps user input to an Action. "reject" and "pass" are accepted
// as aliases of dislike.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "like":
		return ActionLike, nil
	case "superlike", "super_like", "super-like":
		return ActionSuperlike, nil
	case "dislike", "reject", "pass":
		return ActionDislike, nil
	}
	return "", ErrUnknownAction
}

// Positive reports whether the action counts as a like of any kind
func (a Action) Positive() bool {
	return a == ActionLike || a == ActionSuperlike
}

// Interaction is one entry of the append-only interaction log
type Interaction struct {
	ID        string    `json:"id" yaml:"id"`
	ActorID   string    `json:"user_id" yaml:"user_id"`
	TargetID  string    `json:"target_id" yaml:"target_id"`
	Action    Action    `json:"action" yaml:"action"`
	CreatedAt time.Time `json:"timestamp" yaml:"timestamp"`
}

// LatestActions reduces an interaction log to the most recent action the
// actor took on each target. Entries are ordered by CreatedAt; entries with
// the same timestamp keep their log order, so the later one wins.
func LatestActions(actorID string, log []Interaction) map[string]Action {
	own := make([]Interaction, 0, len(log))
	for _, in := range log {
		if in.ActorID == actorID {
			own = append(own, in)
		}
	}
	sort.SliceStable(own, func(i, j int) bool {
		return own[i].CreatedAt.Before(own[j].CreatedAt)
	})
	latest := make(map[string]Action, len(own))
	for _, in := range own {
		latest[in.TargetID] = in.Action
	}
	return latest
}

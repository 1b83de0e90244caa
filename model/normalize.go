package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Tags is an unordered set of trimmed, lower-cased tokens
type Tags map[string]struct{}

// NewTags builds a Tags set from the given values, normalizing each one
func NewTags(values ...string) Tags {
	t := make(Tags, len(values))
	for _, v := range values {
		t.add(v)
	}
	return t
}

func (t Tags) add(v string) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v != "" {
		t[v] = struct{}{}
	}
}

// Has reports whether the (normalized) value is in the set
func (t Tags) Has(v string) bool {
	_, ok := t[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

// Slice returns the members in sorted order
func (t Tags) Slice() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the set as a sorted JSON array
func (t Tags) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Slice())
}

// UnmarshalJSON accepts anything NormalizeTags accepts
func (t *Tags) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*t = NormalizeTags(v)
	return nil
}

// NormalizeTags turns the heterogeneous shapes interests and orientation
// arrive in (nil, "a, b", "a;b", []string, []any, JSON arrays) into a Tags set.
// Anything unrecognized yields an empty set.
func NormalizeTags(v any) Tags {
	out := Tags{}
	switch val := v.(type) {
	case nil:
	case Tags:
		for k := range val {
			out.add(k)
		}
	case string:
		addSplit(out, val)
	case []string:
		for _, s := range val {
			addSplit(out, s)
		}
	case []any:
		for _, item := range val {
			switch s := item.(type) {
			case nil:
			case string:
				addSplit(out, s)
			default:
				out.add(fmt.Sprint(s))
			}
		}
	case json.RawMessage:
		return normalizeJSON(val)
	case []byte:
		return normalizeJSON(val)
	}
	return out
}

func normalizeJSON(raw []byte) Tags {
	if len(raw) == 0 {
		return Tags{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		// plain text column, not JSON
		return NormalizeTags(string(raw))
	}
	return NormalizeTags(v)
}

func addSplit(t Tags, s string) {
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		t.add(part)
	}
}

// ParseLocation splits "City, State[, ...]" into its parts
func ParseLocation(raw string) Location {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}
	}
	loc := Location{Raw: raw}
	parts := strings.Split(raw, ",")
	loc.City = strings.TrimSpace(parts[0])
	if len(parts) >= 2 {
		loc.State = strings.TrimSpace(parts[1])
	}
	return loc
}

// ClampAge bounds an age to [MinAge, MaxAge]; a missing age becomes DefaultAge
func ClampAge(age int) int {
	if age <= 0 {
		return DefaultAge
	}
	if age < MinAge {
		return MinAge
	}
	if age > MaxAge {
		return MaxAge
	}
	return age
}

// NormalizeGender lower-cases and trims a gender string
func NormalizeGender(g string) string {
	return strings.ToLower(strings.TrimSpace(g))
}

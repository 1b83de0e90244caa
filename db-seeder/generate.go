package main

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/patra-app/matchrank/model"
)

var (
	firstNames = []string{"alex", "sam", "mia", "li", "noah", "olivia", "leo", "emil", "sara", "luca", "milla", "mikko", "eeva", "niklas", "sofia"}
	cities     = []string{"Austin, TX", "Dallas, TX", "Houston, TX", "Portland, OR", "Seattle, WA", "Denver, CO", "Boston, MA"}
	interests  = []string{"hiking", "music", "cooking", "travel", "yoga", "photography", "gaming", "reading", "climbing", "cycling", "art", "coffee"}
	genders    = []string{"male", "female", "non-binary"}
	// weighted towards no preference so most pools stay large
	orientations = []string{"", "", "", "straight", "gay", "bisexual", "pansexual"}
	bioPhrases   = []string{
		"weekend trail runner", "amateur pasta chef", "always planning the next trip",
		"bookshop regular", "sunrise yoga person", "film camera nerd", "board game host",
		"bouldering most evenings", "long bike rides and good coffee", "museum wanderer",
	}
	actions = []model.Action{model.ActionLike, model.ActionLike, model.ActionDislike, model.ActionSuperlike}
)

type genOptions struct {
	Count int
	Seed  int64
	// InteractionRate is the expected number of interactions per user
	InteractionRate float64
	Now             time.Time
}

type dataset struct {
	Profiles     []model.RawProfile
	Interactions []model.Interaction
}

// generate builds a deterministic dataset for the given seed. The first two
// users are fixed test accounts.
func generate(o genOptions) dataset {
	r := rand.New(rand.NewSource(o.Seed))
	ds := dataset{Profiles: make([]model.RawProfile, 0, o.Count)}

	for i := 0; i < o.Count; i++ {
		id := fmt.Sprintf("user-%04d", i+1)
		p := model.RawProfile{
			ID:           id,
			DisplayName:  displayName(r, i),
			Age:          18 + r.Intn(43),
			Bio:          bio(r),
			Location:     cities[r.Intn(len(cities))],
			Interests:    pick(r, interests, 1+r.Intn(5)),
			Gender:       genders[r.Intn(len(genders))],
			Orientation:  orientations[r.Intn(len(orientations))],
			Completeness: 0.5 + r.Float64()/2,
		}
		if i < 2 {
			p.Location = "Austin, TX"
			p.Interests = []string{"hiking", "music", "coffee"}
			p.Orientation = ""
		}
		ds.Profiles = append(ds.Profiles, p)
	}

	if o.Count < 2 {
		return ds
	}
	n := int(float64(o.Count) * o.InteractionRate)
	for i := 0; i < n; i++ {
		a, b := r.Intn(o.Count), r.Intn(o.Count)
		if a == b {
			continue
		}
		ds.Interactions = append(ds.Interactions, model.Interaction{
			ID:        uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%d-%d", o.Seed, i))).String(),
			ActorID:   ds.Profiles[a].ID,
			TargetID:  ds.Profiles[b].ID,
			Action:    actions[r.Intn(len(actions))],
			CreatedAt: o.Now.Add(-time.Duration(r.Intn(60*24)) * time.Hour).UTC(),
		})
	}
	return ds
}

func displayName(r *rand.Rand, i int) string {
	if i < 2 {
		return fmt.Sprintf("Test User %d", i+1)
	}
	name := firstNames[r.Intn(len(firstNames))]
	return strings.ToUpper(name[:1]) + name[1:]
}

func bio(r *rand.Rand) string {
	// some profiles have no bio at all
	if r.Intn(5) == 0 {
		return ""
	}
	return strings.Join(pick(r, bioPhrases, 1+r.Intn(3)), ", ")
}

func pick(r *rand.Rand, from []string, n int) []string {
	idx := r.Perm(len(from))
	out := make([]string, 0, n)
	for _, i := range idx[:n] {
		out = append(out, from[i])
	}
	return out
}

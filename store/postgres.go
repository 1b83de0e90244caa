package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/patra-app/matchrank/logging"
	"github.com/patra-app/matchrank/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
    id            TEXT PRIMARY KEY,
    display_name  TEXT,
    age           INT,
    bio           TEXT,
    location      TEXT,
    interests     JSONB,
    gender        TEXT,
    orientation   TEXT,
    age_min       INT,
    age_max       INT,
    rating        DOUBLE PRECISION,
    completeness  DOUBLE PRECISION NOT NULL DEFAULT 0,
    photos        TEXT[],
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS interactions (
    id          UUID PRIMARY KEY,
    user_id     TEXT NOT NULL,
    target_id   TEXT NOT NULL,
    action      TEXT NOT NULL CHECK (action IN ('like', 'dislike', 'superlike')),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS interactions_user_created_idx ON interactions (user_id, created_at);
`

const profileColumns = `
    id,
    COALESCE(display_name, ''),
    COALESCE(age, 0),
    COALESCE(bio, ''),
    COALESCE(location, ''),
    interests,
    COALESCE(gender, ''),
    COALESCE(orientation, ''),
    COALESCE(age_min, 0),
    COALESCE(age_max, 0),
    rating,
    completeness,
    photos`

// Postgres is a ProfileStore backed by PostgreSQL
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects and pings the database
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot reach the database: %w", err)
	}
	logging.Info().Msg("database connection established")
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an existing handle
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// DB exposes the handle for the seeder
func (p *Postgres) DB() *sql.DB { return p.db }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate creates the tables if they do not exist
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (model.Profile, error) {
	var (
		raw         model.RawProfile
		interests   []byte
		orientation string
		rating      sql.NullFloat64
		photos      []string
	)
	err := row.Scan(
		&raw.ID,
		&raw.DisplayName,
		&raw.Age,
		&raw.Bio,
		&raw.Location,
		&interests,
		&raw.Gender,
		&orientation,
		&raw.AgeMin,
		&raw.AgeMax,
		&rating,
		&raw.Completeness,
		pq.Array(&photos),
	)
	if err != nil {
		return model.Profile{}, err
	}
	if interests != nil {
		raw.Interests = json.RawMessage(interests)
	}
	raw.Orientation = orientation
	if rating.Valid {
		raw.Rating = &rating.Float64
	}
	raw.Photos = photos
	return raw.Normalize(), nil
}

func (p *Postgres) GetUser(ctx context.Context, id string) (*model.Profile, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	prof, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &prof, nil
}

func (p *Postgres) GetUsers(ctx context.Context, ids []string) (map[string]*model.Profile, error) {
	out := make(map[string]*model.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		prof, err := scanProfile(rows)
		if err != nil {
			return nil, classify(err)
		}
		out[prof.ID] = &prof
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (p *Postgres) GetAllUsers(ctx context.Context) ([]model.Profile, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY id`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var out []model.Profile
	for rows.Next() {
		prof, err := scanProfile(rows)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, prof)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (p *Postgres) GetInteractions(ctx context.Context, userID string, sinceDays int) ([]model.Interaction, error) {
	query := `
        SELECT id, user_id, target_id, action, created_at
        FROM interactions
        WHERE user_id = $1`
	args := []any{userID}
	if sinceDays > 0 {
		query += ` AND created_at >= NOW() - make_interval(days => $2)`
		args = append(args, sinceDays)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []model.Interaction
	for rows.Next() {
		var in model.Interaction
		var action string
		if err := rows.Scan(&in.ID, &in.ActorID, &in.TargetID, &action, &in.CreatedAt); err != nil {
			return nil, classify(err)
		}
		a, err := model.ParseAction(action)
		if err != nil {
			logging.Warn().Str("interaction_id", in.ID).Str("action", action).Msg("skipping interaction with unknown action")
			continue
		}
		in.Action = a
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (p *Postgres) SaveInteraction(ctx context.Context, in model.Interaction) error {
	_, err := p.db.ExecContext(ctx, `
        INSERT INTO interactions (id, user_id, target_id, action, created_at)
        VALUES ($1, $2, $3, $4, $5)`,
		in.ID, in.ActorID, in.TargetID, string(in.Action), in.CreatedAt,
	)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (p *Postgres) UpdateRating(ctx context.Context, userID string, rating float64) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE profiles SET rating = $1, updated_at = NOW() WHERE id = $2`, rating, userID)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// UpsertProfile writes a profile, keeping an existing rating when the new one is unset
func (p *Postgres) UpsertProfile(ctx context.Context, prof model.Profile) error {
	interests, err := json.Marshal(prof.Interests.Slice())
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
        INSERT INTO profiles (id, display_name, age, bio, location, interests, gender, orientation,
                              age_min, age_max, rating, completeness, photos)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT (id) DO UPDATE SET
            display_name = EXCLUDED.display_name,
            age = EXCLUDED.age,
            bio = EXCLUDED.bio,
            location = EXCLUDED.location,
            interests = EXCLUDED.interests,
            gender = EXCLUDED.gender,
            orientation = EXCLUDED.orientation,
            age_min = EXCLUDED.age_min,
            age_max = EXCLUDED.age_max,
            rating = COALESCE(EXCLUDED.rating, profiles.rating),
            completeness = EXCLUDED.completeness,
            photos = EXCLUDED.photos,
            updated_at = NOW()`,
		prof.ID, prof.DisplayName, prof.Age, prof.Bio, prof.Location.Raw, interests,
		prof.Gender, joinTags(prof.Orientation), prof.AgeMin, prof.AgeMax,
		nullRating(prof.Rating), prof.Completeness, pq.Array(prof.Photos),
	)
	if err != nil {
		return classify(err)
	}
	return nil
}

func joinTags(t model.Tags) string {
	return strings.Join(t.Slice(), ",")
}

func nullRating(r float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: r, Valid: r != 0}
}

// classify maps connectivity failures to ErrUnavailable and leaves query
// errors untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "08" {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const getProfileSQL = `
SELECT id, full_name, username, website, avatar_url, updated_at
FROM profiles
WHERE id = $1`

const upsertProfileSQL = `
INSERT INTO profiles (id, full_name, username, website, avatar_url, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	full_name = EXCLUDED.full_name,
	username = EXCLUDED.username,
	website = EXCLUDED.website,
	avatar_url = EXCLUDED.avatar_url,
	updated_at = EXCLUDED.updated_at
RETURNING id, full_name, username, website, avatar_url, updated_at`

// ProfileRepository implements domain.ProfileRepository using PostgreSQL
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// GetByID retrieves a profile by the auth user id
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	row := r.pool.QueryRow(ctx, getProfileSQL, pgtype.UUID{Bytes: id, Valid: true})
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProfileNotFound
		}
		return nil, err
	}
	return profile, nil
}

// Upsert inserts the profile or replaces the existing row with the same id
func (r *ProfileRepository) Upsert(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	row := r.pool.QueryRow(ctx, upsertProfileSQL,
		pgtype.UUID{Bytes: profile.ID, Valid: true},
		stringPtrToPgText(profile.FullName),
		stringPtrToPgText(profile.Username),
		stringPtrToPgText(profile.Website),
		stringPtrToPgText(profile.AvatarURL),
		timePtrToPgTimestamptz(profile.UpdatedAt),
	)
	saved, err := scanProfile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrUsernameTaken
		}
		return nil, err
	}
	return saved, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var (
		id        pgtype.UUID
		fullName  pgtype.Text
		username  pgtype.Text
		website   pgtype.Text
		avatarURL pgtype.Text
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &fullName, &username, &website, &avatarURL, &updatedAt); err != nil {
		return nil, err
	}
	return &domain.Profile{
		ID:        uuid.UUID(id.Bytes),
		FullName:  pgTextToStringPtr(fullName),
		Username:  pgTextToStringPtr(username),
		Website:   pgTextToStringPtr(website),
		AvatarURL: pgTextToStringPtr(avatarURL),
		UpdatedAt: pgTimestamptzToTimePtr(updatedAt),
	}, nil
}

func stringPtrToPgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func pgTextToStringPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func timePtrToPgTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func pgTimestamptzToTimePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

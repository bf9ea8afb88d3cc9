package postgrest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

const (
	profilesTable   = "profiles"
	profileColumns  = "id,full_name,username,website,avatar_url,updated_at"
	uniqueViolation = "23505"
)

// profileRow is the wire shape of a profiles row
type profileRow struct {
	ID        uuid.UUID  `json:"id"`
	FullName  *string    `json:"full_name"`
	Username  *string    `json:"username"`
	Website   *string    `json:"website"`
	AvatarURL *string    `json:"avatar_url"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// ClientSource hands out the Supabase client a data request should use
type ClientSource interface {
	DataFor(ctx context.Context) (*supabase.Client, error)
}

// ProfileRepository implements domain.ProfileRepository through PostgREST
type ProfileRepository struct {
	clients ClientSource
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(clients ClientSource) *ProfileRepository {
	return &ProfileRepository{clients: clients}
}

// GetByID retrieves a profile by the auth user id
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	client, err := r.clients.DataFor(ctx)
	if err != nil {
		return nil, err
	}

	var rows []profileRow
	_, err = client.From(profilesTable).
		Select(profileColumns, "", false).
		Eq("id", id.String()).
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrProfileNotFound
	}
	return rows[0].toDomain(), nil
}

// Upsert inserts the profile or replaces the existing row with the same id
func (r *ProfileRepository) Upsert(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	client, err := r.clients.DataFor(ctx)
	if err != nil {
		return nil, err
	}

	var rows []profileRow
	_, err = client.From(profilesTable).
		Upsert(fromDomain(profile), "id", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		if strings.Contains(err.Error(), uniqueViolation) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	if len(rows) == 0 {
		return profile, nil
	}
	return rows[0].toDomain(), nil
}

func (p profileRow) toDomain() *domain.Profile {
	return &domain.Profile{
		ID:        p.ID,
		FullName:  p.FullName,
		Username:  p.Username,
		Website:   p.Website,
		AvatarURL: p.AvatarURL,
		UpdatedAt: p.UpdatedAt,
	}
}

func fromDomain(p *domain.Profile) profileRow {
	return profileRow{
		ID:        p.ID,
		FullName:  p.FullName,
		Username:  p.Username,
		Website:   p.Website,
		AvatarURL: p.AvatarURL,
		UpdatedAt: p.UpdatedAt,
	}
}

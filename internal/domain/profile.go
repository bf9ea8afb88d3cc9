package domain

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Profile is a row of the public profiles table, keyed by auth user id
type Profile struct {
	ID        uuid.UUID  `json:"id"`
	FullName  *string    `json:"fullName"`
	Username  *string    `json:"username"`
	Website   *string    `json:"website"`
	AvatarURL *string    `json:"avatarUrl"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// ProfileRepository defines the interface for profile persistence operations
type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	Upsert(ctx context.Context, profile *Profile) (*Profile, error)
}

// AvatarStorage stores avatar objects in a bucket
type AvatarStorage interface {
	Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) error
	Download(ctx context.Context, objectPath string) ([]byte, error)
	Delete(ctx context.Context, objectPath string) error
}

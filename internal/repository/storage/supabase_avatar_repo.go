package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// ClientSource hands out the Supabase client a storage request should use
type ClientSource interface {
	DataFor(ctx context.Context) (*supabase.Client, error)
}

// SupabaseAvatarRepository implements domain.AvatarStorage with the Supabase Storage API
type SupabaseAvatarRepository struct {
	clients ClientSource
	bucket  string
}

// NewSupabaseAvatarRepository creates a new Supabase Storage avatar repository
func NewSupabaseAvatarRepository(clients ClientSource, bucket string) *SupabaseAvatarRepository {
	return &SupabaseAvatarRepository{clients: clients, bucket: bucket}
}

// Upload uploads data under objectPath
func (r *SupabaseAvatarRepository) Upload(ctx context.Context, objectPath string, data io.Reader, contentType string, size int64) error {
	client, err := r.clients.DataFor(ctx)
	if err != nil {
		return err
	}
	upsert := false
	_, err = client.Storage.UploadFile(r.bucket, objectPath, data, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// Download reads the whole object
func (r *SupabaseAvatarRepository) Download(ctx context.Context, objectPath string) ([]byte, error) {
	client, err := r.clients.DataFor(ctx)
	if err != nil {
		return nil, err
	}
	data, err := client.Storage.DownloadFile(r.bucket, objectPath)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrAvatarNotFound
		}
		return nil, fmt.Errorf("failed to download object: %w", err)
	}
	// Some storage-go versions hand back the JSON error body as data
	if apiErr := decodeStorageError(data); apiErr != nil {
		if apiErr.StatusCode == "404" || apiErr.StatusCode == "400" {
			return nil, domain.ErrAvatarNotFound
		}
		return nil, fmt.Errorf("failed to download object: %s %s", apiErr.StatusCode, apiErr.Message)
	}
	return data, nil
}

// Delete removes an object
func (r *SupabaseAvatarRepository) Delete(ctx context.Context, objectPath string) error {
	client, err := r.clients.DataFor(ctx)
	if err != nil {
		return err
	}
	if _, err := client.Storage.RemoveFile(r.bucket, []string{objectPath}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

type storageError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func decodeStorageError(data []byte) *storageError {
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var apiErr storageError
	if err := json.Unmarshal(data, &apiErr); err != nil || apiErr.StatusCode == "" {
		return nil
	}
	return &apiErr
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "404")
}

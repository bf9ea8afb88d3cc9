package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/dafibh/authgate/authgate-backend/internal/domain"
	"github.com/dafibh/authgate/authgate-backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a test image of the specified size and format
func createTestImage(width, height int, format string) ([]byte, string) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	var buf bytes.Buffer
	var filename string

	switch format {
	case "png":
		png.Encode(&buf, img)
		filename = "test.png"
	default:
		jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85})
		filename = "test.jpg"
	}

	return buf.Bytes(), filename
}

func newTestAvatarService() (*AvatarService, *testutil.MockAvatarStorage, *testutil.MockProfileRepository, *testutil.MockPublisher) {
	storage := testutil.NewMockAvatarStorage()
	repo := testutil.NewMockProfileRepository()
	publisher := &testutil.MockPublisher{}

	profiles := NewProfileService(repo)
	svc := NewAvatarService(storage, profiles)
	svc.SetEventPublisher(publisher)
	return svc, storage, repo, publisher
}

func TestValidateImage_ValidJPEG(t *testing.T) {
	svc := NewAvatarService(nil, nil)
	data, filename := createTestImage(100, 100, "jpeg")

	if err := svc.ValidateImage(data, filename); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidateImage_ValidPNG(t *testing.T) {
	svc := NewAvatarService(nil, nil)
	data, filename := createTestImage(100, 100, "png")

	if err := svc.ValidateImage(data, filename); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidateImage_TooLarge(t *testing.T) {
	svc := NewAvatarService(nil, nil)
	data := make([]byte, MaxAvatarSize+1)

	if err := svc.ValidateImage(data, "test.jpg"); err != ErrImageTooLarge {
		t.Errorf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestValidateImage_InvalidFormat(t *testing.T) {
	svc := NewAvatarService(nil, nil)
	data, _ := createTestImage(100, 100, "jpeg")

	if err := svc.ValidateImage(data, "test.gif"); err != ErrInvalidFormat {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestValidateImage_TooSmall(t *testing.T) {
	svc := NewAvatarService(nil, nil)
	data, filename := createTestImage(30, 30, "jpeg")

	if err := svc.ValidateImage(data, filename); err != ErrImageTooSmall {
		t.Errorf("expected ErrImageTooSmall, got %v", err)
	}
}

// inflatePNGHeader rewrites the IHDR dimensions of a PNG without touching
// its pixel data
func inflatePNGHeader(data []byte, width, height uint32) []byte {
	out := append([]byte(nil), data...)
	binary.BigEndian.PutUint32(out[16:20], width)
	binary.BigEndian.PutUint32(out[20:24], height)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestValidateImage_DimensionsTooLarge(t *testing.T) {
	svc := NewAvatarService(nil, nil)
	data, filename := createTestImage(60, 60, "png")
	data = inflatePNGHeader(data, 30000, 30000)

	if err := svc.ValidateImage(data, filename); err != ErrImageDimensionsTooLarge {
		t.Errorf("expected ErrImageDimensionsTooLarge, got %v", err)
	}
}

func TestAvatarService_Upload_RejectsInflatedHeader(t *testing.T) {
	svc, storage, _, _ := newTestAvatarService()
	data, filename := createTestImage(60, 60, "png")

	_, err := svc.Upload(context.Background(), uuid.New(), inflatePNGHeader(data, 20000, 20000), filename)
	assert.ErrorIs(t, err, ErrImageDimensionsTooLarge)
	assert.Empty(t, storage.Objects)
}

func TestValidateImage_InvalidData(t *testing.T) {
	svc := NewAvatarService(nil, nil)

	if err := svc.ValidateImage([]byte("not an image"), "test.jpg"); err != ErrInvalidImageData {
		t.Errorf("expected ErrInvalidImageData, got %v", err)
	}
}

func TestAvatarService_Upload_NotConfigured(t *testing.T) {
	svc := NewAvatarService(nil, nil)
	data, filename := createTestImage(100, 100, "jpeg")

	_, err := svc.Upload(context.Background(), uuid.New(), data, filename)
	assert.ErrorIs(t, err, ErrAvatarStorageNotConfigured)
}

func TestAvatarService_Upload_CropsAndStores(t *testing.T) {
	svc, storage, repo, publisher := newTestAvatarService()
	userID := uuid.New()
	data, filename := createTestImage(400, 300, "png")

	profile, err := svc.Upload(context.Background(), userID, data, filename)
	require.NoError(t, err)
	require.NotNil(t, profile.AvatarURL)

	path := *profile.AvatarURL
	assert.True(t, strings.HasPrefix(path, userID.String()+"-"))
	assert.True(t, strings.HasSuffix(path, ".jpg"))
	assert.Equal(t, "image/jpeg", storage.ContentTypes[path])

	stored, err := jpeg.Decode(bytes.NewReader(storage.Objects[path]))
	require.NoError(t, err)
	assert.Equal(t, AvatarSize, stored.Bounds().Dx())
	assert.Equal(t, AvatarSize, stored.Bounds().Dy())

	saved, ok := repo.Profiles[userID]
	require.True(t, ok)
	assert.Equal(t, path, *saved.AvatarURL)

	assert.Equal(t, []string{"avatar.updated"}, publisher.Types())
	assert.Equal(t, userID.String(), publisher.Events[0].UserID)
}

func TestAvatarService_Upload_ReplacesPreviousAvatar(t *testing.T) {
	svc, storage, repo, _ := newTestAvatarService()
	userID := uuid.New()

	oldPath := userID.String() + "-old.jpg"
	storage.Objects[oldPath] = []byte("old")
	repo.AddProfile(&domain.Profile{ID: userID, AvatarURL: &oldPath})

	data, filename := createTestImage(100, 100, "jpeg")
	profile, err := svc.Upload(context.Background(), userID, data, filename)
	require.NoError(t, err)

	assert.NotEqual(t, oldPath, *profile.AvatarURL)
	assert.Equal(t, []string{oldPath}, storage.Deleted)
	_, stillThere := storage.Objects[oldPath]
	assert.False(t, stillThere)
}

func TestAvatarService_Upload_KeepsForeignPreviousObject(t *testing.T) {
	svc, storage, repo, _ := newTestAvatarService()
	userID := uuid.New()

	foreign := "someone-else.jpg"
	repo.AddProfile(&domain.Profile{ID: userID, AvatarURL: &foreign})

	data, filename := createTestImage(100, 100, "jpeg")
	_, err := svc.Upload(context.Background(), userID, data, filename)
	require.NoError(t, err)
	assert.Empty(t, storage.Deleted)
}

func TestAvatarService_Upload_DeleteFailureIsIgnored(t *testing.T) {
	svc, storage, repo, _ := newTestAvatarService()
	userID := uuid.New()

	oldPath := userID.String() + "-old.jpg"
	repo.AddProfile(&domain.Profile{ID: userID, AvatarURL: &oldPath})
	storage.DeleteErr = errors.New("storage down")

	data, filename := createTestImage(100, 100, "jpeg")
	_, err := svc.Upload(context.Background(), userID, data, filename)
	assert.NoError(t, err)
}

func TestAvatarService_Upload_ProfileFailureRemovesNewObject(t *testing.T) {
	svc, storage, repo, publisher := newTestAvatarService()
	repo.UpsertFn = func(profile *domain.Profile) (*domain.Profile, error) {
		return nil, errors.New("db down")
	}

	data, filename := createTestImage(100, 100, "jpeg")
	_, err := svc.Upload(context.Background(), uuid.New(), data, filename)
	require.Error(t, err)

	assert.Len(t, storage.Deleted, 1)
	assert.Empty(t, storage.Objects)
	assert.Empty(t, publisher.Events)
}

func TestAvatarService_Upload_StorageFailure(t *testing.T) {
	svc, storage, repo, _ := newTestAvatarService()
	storage.UploadErr = errors.New("bucket missing")
	userID := uuid.New()

	data, filename := createTestImage(100, 100, "jpeg")
	_, err := svc.Upload(context.Background(), userID, data, filename)
	require.Error(t, err)

	_, saved := repo.Profiles[userID]
	assert.False(t, saved)
}

func TestAvatarService_Download(t *testing.T) {
	svc, storage, repo, _ := newTestAvatarService()
	userID := uuid.New()

	path := userID.String() + "-abc.jpg"
	storage.Objects[path] = []byte("jpegdata")
	repo.AddProfile(&domain.Profile{ID: userID, AvatarURL: &path})

	data, contentType, err := svc.Download(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpegdata"), data)
	assert.Equal(t, "image/jpeg", contentType)
}

func TestAvatarService_Download_NoAvatar(t *testing.T) {
	svc, _, _, _ := newTestAvatarService()

	_, _, err := svc.Download(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAvatarNotFound)
}

func TestAvatarService_Download_ForeignPath(t *testing.T) {
	svc, storage, repo, _ := newTestAvatarService()
	userID := uuid.New()

	other := uuid.New().String() + "-abc.jpg"
	storage.Objects[other] = []byte("jpegdata")
	repo.AddProfile(&domain.Profile{ID: userID, AvatarURL: &other})

	_, _, err := svc.Download(context.Background(), userID)
	assert.ErrorIs(t, err, domain.ErrAvatarNotFound)
}

func TestOwnsAvatar(t *testing.T) {
	userID := uuid.MustParse("7c1b0c7e-4b0b-4a43-9d55-1f0a2f2b8a11")

	tests := []struct {
		path     string
		expected bool
	}{
		{"7c1b0c7e-4b0b-4a43-9d55-1f0a2f2b8a11-0.4417.jpg", true},
		{"7c1b0c7e-4b0b-4a43-9d55-1f0a2f2b8a11.jpg", false},
		{"other-7c1b0c7e-4b0b-4a43-9d55-1f0a2f2b8a11-x.jpg", false},
		{"7c1b0c7e-4b0b-4a43-9d55-1f0a2f2b8a11-x/../y.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := OwnsAvatar(userID, tt.path); got != tt.expected {
				t.Errorf("OwnsAvatar(%s) = %v, expected %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestGetContentType(t *testing.T) {
	tests := []struct {
		filename string
		expected string
	}{
		{"test.jpg", "image/jpeg"},
		{"test.jpeg", "image/jpeg"},
		{"test.png", "image/png"},
		{"test.webp", "image/webp"},
		{"test.gif", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if ct := GetContentType(tt.filename); ct != tt.expected {
				t.Errorf("GetContentType(%s) = %s, expected %s", tt.filename, ct, tt.expected)
			}
		})
	}
}

package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// fakeRow scans fixed values into the destination pointers
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *pgtype.UUID:
			*p = r.values[i].(pgtype.UUID)
		case *pgtype.Text:
			*p = r.values[i].(pgtype.Text)
		case *pgtype.Timestamptz:
			*p = r.values[i].(pgtype.Timestamptz)
		}
	}
	return nil
}

func TestScanProfile(t *testing.T) {
	id := uuid.New()
	updated := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	row := fakeRow{values: []any{
		pgtype.UUID{Bytes: id, Valid: true},
		pgtype.Text{String: "Ada Lovelace", Valid: true},
		pgtype.Text{String: "ada", Valid: true},
		pgtype.Text{Valid: false},
		pgtype.Text{String: id.String() + "-x.jpg", Valid: true},
		pgtype.Timestamptz{Time: updated, Valid: true},
	}}

	profile, err := scanProfile(row)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if profile.ID != id {
		t.Errorf("Expected id %s, got %s", id, profile.ID)
	}
	if profile.FullName == nil || *profile.FullName != "Ada Lovelace" {
		t.Errorf("Expected full name to be set")
	}
	if profile.Website != nil {
		t.Errorf("Expected nil website, got %v", *profile.Website)
	}
	if profile.UpdatedAt == nil || !profile.UpdatedAt.Equal(updated) {
		t.Errorf("Expected updated_at %v", updated)
	}
}

func TestScanProfile_Error(t *testing.T) {
	_, err := scanProfile(fakeRow{err: errors.New("boom")})
	if err == nil {
		t.Fatal("Expected error")
	}
}

func TestPgTextConversions(t *testing.T) {
	if stringPtrToPgText(nil).Valid {
		t.Error("nil should map to invalid text")
	}
	s := "value"
	if got := pgTextToStringPtr(stringPtrToPgText(&s)); got == nil || *got != "value" {
		t.Error("round trip failed")
	}
	if timePtrToPgTimestamptz(nil).Valid {
		t.Error("nil time should map to invalid timestamptz")
	}
}

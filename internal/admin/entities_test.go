package admin

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"lectoria/internal/db"
	"lectoria/internal/models"
)

func newTestRegistry(t *testing.T) (*Registry, *db.DB) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})
	return NewRegistry(database), database
}

func TestRegistryUnknownEntity(t *testing.T) {
	registry, _ := newTestRegistry(t)

	if _, err := registry.Get("widgets"); !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("Get() error = %v, want ErrUnknownEntity", err)
	}
}

func TestSectionCrudRoundTrip(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	entity, err := registry.Get("sections")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	created, err := entity.Create(ctx, map[string]any{
		"name":      "Science",
		"slug":      "science",
		"is_active": true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	section := created.(*models.Section)

	if err := entity.Update(ctx, section.ID, map[string]any{
		"name": "Natural Science",
		"slug": "science",
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := entity.Get(ctx, section.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.(*models.Section).Name != "Natural Science" {
		t.Fatalf("name = %q, want %q", got.(*models.Section).Name, "Natural Science")
	}

	if err := entity.Delete(ctx, section.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := entity.Get(ctx, section.ID); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestCreateRejectsMissingRequiredField(t *testing.T) {
	registry, _ := newTestRegistry(t)

	entity, err := registry.Get("sections")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	_, err = entity.Create(context.Background(), map[string]any{"slug": "no-name"})
	var ferr *FieldError
	if !errors.As(err, &ferr) {
		t.Fatalf("Create() error = %v, want FieldError", err)
	}
	if ferr.Field != "name" {
		t.Fatalf("field = %q, want %q", ferr.Field, "name")
	}
}

func TestLectureSlugFrozenWhileBooked(t *testing.T) {
	registry, database := newTestRegistry(t)
	ctx := context.Background()

	entity, err := registry.Get("lectures")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	created, err := entity.Create(ctx, map[string]any{
		"title":     "Intro to Beekeeping",
		"slug":      "intro-to-beekeeping",
		"is_active": true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	lecture := created.(*models.Lecture)

	// Reference the lecture from a booking.
	user, err := db.NewUserRepository(database).Create(ctx, db.CreateUserParams{
		Username: "bob", Email: "bob@example.com", PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := db.NewOrderRepository(database).CreateTx(ctx, tx, db.CreateOrderParams{
		Name: "Bob", Email: "bob@example.com", LectureID: lecture.ID, UserID: user.ID,
		TokenHash: "digest", TokenExpires: time.Now().Add(time.Hour),
	}); err != nil {
		tx.Rollback()
		t.Fatalf("CreateTx() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	err = entity.Update(ctx, lecture.ID, map[string]any{
		"title": "Intro to Beekeeping",
		"slug":  "different-slug",
	})
	var ferr *FieldError
	if !errors.As(err, &ferr) || ferr.Field != "slug" {
		t.Fatalf("Update() error = %v, want slug FieldError", err)
	}

	// Everything but the slug stays editable.
	if err := entity.Update(ctx, lecture.ID, map[string]any{
		"title": "Advanced Beekeeping",
		"slug":  "intro-to-beekeeping",
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
}

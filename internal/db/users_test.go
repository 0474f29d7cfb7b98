package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

func createTestUser(t *testing.T, repo *UserRepository, username, email string) string {
	t.Helper()

	u, err := repo.Create(context.Background(), CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: "x",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return u.ID
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	database := openTestDB(t)
	repo := NewUserRepository(database)

	createTestUser(t, repo, "alice", "alice@example.com")

	_, err := repo.Create(context.Background(), CreateUserParams{
		Username:     "alice2",
		Email:        "alice@example.com",
		PasswordHash: "x",
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("Create() error = %v, want ErrDuplicate", err)
	}
}

func TestConfirmByTokenIsOneShot(t *testing.T) {
	database := openTestDB(t)
	repo := NewUserRepository(database)
	ctx := context.Background()

	id := createTestUser(t, repo, "alice", "alice@example.com")
	if err := repo.SetConfirmationToken(ctx, id, "digest", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SetConfirmationToken() error = %v", err)
	}

	u, err := repo.ConfirmByToken(ctx, "digest", time.Now())
	if err != nil {
		t.Fatalf("ConfirmByToken() error = %v", err)
	}
	if !u.IsActive || !u.EmailConfirmed {
		t.Fatalf("user active=%v confirmed=%v, want both true", u.IsActive, u.EmailConfirmed)
	}
	if u.ConfirmationTokenHash != nil {
		t.Fatalf("confirmation token hash = %q, want cleared", *u.ConfirmationTokenHash)
	}

	// Same token must not redeem twice.
	if _, err := repo.ConfirmByToken(ctx, "digest", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second ConfirmByToken() error = %v, want ErrNotFound", err)
	}
}

func TestConfirmByTokenRejectsExpiredToken(t *testing.T) {
	database := openTestDB(t)
	repo := NewUserRepository(database)
	ctx := context.Background()

	id := createTestUser(t, repo, "alice", "alice@example.com")
	if err := repo.SetConfirmationToken(ctx, id, "digest", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SetConfirmationToken() error = %v", err)
	}

	if _, err := repo.ConfirmByToken(ctx, "digest", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ConfirmByToken() error = %v, want ErrNotFound", err)
	}
}

func TestResetPasswordByToken(t *testing.T) {
	database := openTestDB(t)
	repo := NewUserRepository(database)
	ctx := context.Background()

	id := createTestUser(t, repo, "alice", "alice@example.com")
	if err := repo.SetResetToken(ctx, id, "digest", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SetResetToken() error = %v", err)
	}

	u, err := repo.ResetPasswordByToken(ctx, "digest", "newhash", time.Now())
	if err != nil {
		t.Fatalf("ResetPasswordByToken() error = %v", err)
	}
	if u.PasswordHash != "newhash" {
		t.Fatalf("password hash = %q, want %q", u.PasswordHash, "newhash")
	}
	if u.ResetTokenHash != nil {
		t.Fatalf("reset token hash = %q, want cleared", *u.ResetTokenHash)
	}

	if _, err := repo.ResetPasswordByToken(ctx, "digest", "other", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second ResetPasswordByToken() error = %v, want ErrNotFound", err)
	}
}

func TestIncrementSessionVersion(t *testing.T) {
	database := openTestDB(t)
	repo := NewUserRepository(database)
	ctx := context.Background()

	id := createTestUser(t, repo, "alice", "alice@example.com")
	if err := repo.IncrementSessionVersion(ctx, id); err != nil {
		t.Fatalf("IncrementSessionVersion() error = %v", err)
	}

	u, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if u.SessionVersion != 2 {
		t.Fatalf("session version = %d, want 2", u.SessionVersion)
	}
}

func TestRoleAssignAndForUser(t *testing.T) {
	database := openTestDB(t)
	users := NewUserRepository(database)
	roles := NewRoleRepository(database)
	ctx := context.Background()

	id := createTestUser(t, users, "alice", "alice@example.com")

	if err := roles.Assign(ctx, id, "editor"); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	// Assigning twice is a no-op.
	if err := roles.Assign(ctx, id, "editor"); err != nil {
		t.Fatalf("second Assign() error = %v", err)
	}
	if err := roles.Assign(ctx, id, "nosuchrole"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Assign() unknown role error = %v, want ErrNotFound", err)
	}

	names, err := roles.ForUser(ctx, id)
	if err != nil {
		t.Fatalf("ForUser() error = %v", err)
	}
	if len(names) != 1 || names[0] != "editor" {
		t.Fatalf("roles = %v, want [editor]", names)
	}
}

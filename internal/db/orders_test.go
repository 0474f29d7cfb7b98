package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"lectoria/internal/models"
)

func createTestLecture(t *testing.T, repo *LectureRepository, title, slug string) string {
	t.Helper()

	l, err := repo.Create(context.Background(), LectureParams{
		Title:    title,
		Slug:     slug,
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return l.ID
}

func createTestOrder(t *testing.T, database *DB, repo *OrderRepository, p CreateOrderParams) *models.Order {
	t.Helper()
	ctx := context.Background()

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	order, err := repo.CreateTx(ctx, tx, p)
	if err != nil {
		tx.Rollback()
		t.Fatalf("CreateTx() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	return order
}

func TestCreateOrderStartsPendingAndUnconfirmed(t *testing.T) {
	database := openTestDB(t)
	lectures := NewLectureRepository(database)
	orders := NewOrderRepository(database)
	users := NewUserRepository(database)

	lectureID := createTestLecture(t, lectures, "Intro to Beekeeping", "intro-to-beekeeping")
	userID := createTestUser(t, users, "bob", "bob@example.com")

	order := createTestOrder(t, database, orders, CreateOrderParams{
		Name:         "Bob",
		Email:        "bob@example.com",
		LectureID:    lectureID,
		UserID:       userID,
		TokenHash:    "digest",
		TokenExpires: time.Now().Add(time.Hour),
	})

	if order.Status != models.StatusPending {
		t.Fatalf("status = %q, want %q", order.Status, models.StatusPending)
	}
	if order.IsConfirmed {
		t.Fatal("new order is confirmed, want unconfirmed")
	}
}

func TestConfirmOrderByToken(t *testing.T) {
	database := openTestDB(t)
	lectures := NewLectureRepository(database)
	orders := NewOrderRepository(database)
	users := NewUserRepository(database)
	ctx := context.Background()

	lectureID := createTestLecture(t, lectures, "Intro to Beekeeping", "intro-to-beekeeping")
	userID := createTestUser(t, users, "bob", "bob@example.com")

	createTestOrder(t, database, orders, CreateOrderParams{
		Name:         "Bob",
		Email:        "bob@example.com",
		LectureID:    lectureID,
		UserID:       userID,
		TokenHash:    "digest",
		TokenExpires: time.Now().Add(time.Hour),
	})

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	order, err := orders.ConfirmByTokenTx(ctx, tx, "digest", time.Now())
	if err != nil {
		tx.Rollback()
		t.Fatalf("ConfirmByTokenTx() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if order.Status != models.StatusConfirmed {
		t.Fatalf("status = %q, want %q", order.Status, models.StatusConfirmed)
	}
	if !order.IsConfirmed {
		t.Fatal("order not marked confirmed")
	}
	if order.ConfirmationTokenHash != nil {
		t.Fatalf("token hash = %q, want cleared", *order.ConfirmationTokenHash)
	}

	// Redeeming again must fail.
	tx, err = database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	defer tx.Rollback()
	if _, err := orders.ConfirmByTokenTx(ctx, tx, "digest", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second ConfirmByTokenTx() error = %v, want ErrNotFound", err)
	}
}

func TestConfirmOrderRejectsExpiredToken(t *testing.T) {
	database := openTestDB(t)
	lectures := NewLectureRepository(database)
	orders := NewOrderRepository(database)
	users := NewUserRepository(database)
	ctx := context.Background()

	lectureID := createTestLecture(t, lectures, "Intro to Beekeeping", "intro-to-beekeeping")
	userID := createTestUser(t, users, "bob", "bob@example.com")

	createTestOrder(t, database, orders, CreateOrderParams{
		Name:         "Bob",
		Email:        "bob@example.com",
		LectureID:    lectureID,
		UserID:       userID,
		TokenHash:    "digest",
		TokenExpires: time.Now().Add(-time.Minute),
	})

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	defer tx.Rollback()
	if _, err := orders.ConfirmByTokenTx(ctx, tx, "digest", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ConfirmByTokenTx() error = %v, want ErrNotFound", err)
	}
}

func TestOperatorUpdateSetsLecturerAndDate(t *testing.T) {
	database := openTestDB(t)
	lectures := NewLectureRepository(database)
	orders := NewOrderRepository(database)
	users := NewUserRepository(database)
	ctx := context.Background()

	lectureID := createTestLecture(t, lectures, "Intro to Beekeeping", "intro-to-beekeeping")
	userID := createTestUser(t, users, "bob", "bob@example.com")
	lecturerID := createTestUser(t, users, "carol", "carol@example.com")

	order := createTestOrder(t, database, orders, CreateOrderParams{
		Name:         "Bob",
		Email:        "bob@example.com",
		LectureID:    lectureID,
		UserID:       userID,
		TokenHash:    "digest",
		TokenExpires: time.Now().Add(time.Hour),
	})

	status := models.StatusProcessing
	date := time.Date(2026, 10, 1, 14, 0, 0, 0, time.UTC)
	err := orders.OperatorUpdate(ctx, order.ID, OperatorUpdateParams{
		Status:      &status,
		LecturerID:  &lecturerID,
		LectureDate: &date,
	})
	if err != nil {
		t.Fatalf("OperatorUpdate() error = %v", err)
	}

	got, err := orders.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Status != models.StatusProcessing {
		t.Fatalf("status = %q, want %q", got.Status, models.StatusProcessing)
	}
	if got.LecturerID == nil || *got.LecturerID != lecturerID {
		t.Fatalf("lecturer = %v, want %q", got.LecturerID, lecturerID)
	}
	if got.LectureDate == nil || !got.LectureDate.Equal(date) {
		t.Fatalf("lecture date = %v, want %v", got.LectureDate, date)
	}
}

func TestListByLecturerFiltersByWindow(t *testing.T) {
	database := openTestDB(t)
	lectures := NewLectureRepository(database)
	orders := NewOrderRepository(database)
	users := NewUserRepository(database)
	ctx := context.Background()

	lectureID := createTestLecture(t, lectures, "Intro to Beekeeping", "intro-to-beekeeping")
	userID := createTestUser(t, users, "bob", "bob@example.com")
	lecturerID := createTestUser(t, users, "carol", "carol@example.com")

	for i, date := range []time.Time{
		time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 11, 1, 10, 0, 0, 0, time.UTC),
	} {
		order := createTestOrder(t, database, orders, CreateOrderParams{
			Name:         "Bob",
			Email:        "bob@example.com",
			LectureID:    lectureID,
			UserID:       userID,
			TokenHash:    "digest" + string(rune('a'+i)),
			TokenExpires: time.Now().Add(time.Hour),
		})
		d := date
		if err := orders.OperatorUpdate(ctx, order.ID, OperatorUpdateParams{LecturerID: &lecturerID, LectureDate: &d}); err != nil {
			t.Fatalf("OperatorUpdate() error = %v", err)
		}
	}

	from := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	got, err := orders.ListByLecturer(ctx, lecturerID, &from, nil)
	if err != nil {
		t.Fatalf("ListByLecturer() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(orders) = %d, want 1", len(got))
	}

	// The upper bound is exclusive, so a lecture late in the day survives a
	// window ending at the following midnight.
	to := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	got, err = orders.ListByLecturer(ctx, lecturerID, nil, &to)
	if err != nil {
		t.Fatalf("ListByLecturer() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(orders) in to-window = %d, want 1", len(got))
	}
}

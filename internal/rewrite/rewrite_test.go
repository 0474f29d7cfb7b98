package rewrite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"lectoria/internal/db"
	"lectoria/internal/metrics"
)

func TestClientRewrite(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q, want test-model", req.Model)
		}
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{
				{Message: chatMessage{Role: "assistant", Content: "  A better description.  "}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", "test-model", 350)
	text, err := client.Rewrite(context.Background(), "Beekeeping", "Old text")
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if text != "A better description." {
		t.Fatalf("text = %q, want trimmed response", text)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}

func TestClientRewriteSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", "test-model", 350)
	if _, err := client.Rewrite(context.Background(), "T", "D"); err == nil {
		t.Fatal("Rewrite() succeeded on a 429 response")
	}
}

type fakeRewriter struct {
	calls []string
	fail  map[string]bool
}

func (f *fakeRewriter) Rewrite(ctx context.Context, title, description string) (string, error) {
	f.calls = append(f.calls, title)
	if f.fail[title] {
		return "", fmt.Errorf("model unavailable")
	}
	return "rewritten: " + description, nil
}

func insertLecture(t *testing.T, database *db.DB, id, title, slug, description string, age time.Duration) {
	t.Helper()

	_, err := database.ExecContext(context.Background(),
		`INSERT INTO lectures (id, title, description, content, slug, is_active, created_at)
		 VALUES (?, ?, ?, 'body', ?, 1, ?)`,
		id, title, description, slug, time.Now().UTC().Add(-age))
	if err != nil {
		t.Fatalf("inserting lecture: %v", err)
	}
}

func TestSchedulerRewritesOnlyStaleLectures(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	defer database.Close()

	insertLecture(t, database, "lec_old", "Old", "old", "dusty text", 30*24*time.Hour)
	insertLecture(t, database, "lec_fresh", "Fresh", "fresh", "new text", time.Hour)
	insertLecture(t, database, "lec_empty", "Empty", "empty", "", 30*24*time.Hour)

	lectures := db.NewLectureRepository(database)
	rewriter := &fakeRewriter{}
	s := NewScheduler(lectures, rewriter, metrics.Nop{}, 0, 15*24*time.Hour)

	s.run(context.Background())

	if len(rewriter.calls) != 1 || rewriter.calls[0] != "Old" {
		t.Fatalf("rewriter calls = %v, want [Old]", rewriter.calls)
	}

	got, err := lectures.FindByID(context.Background(), "lec_old")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Description != "rewritten: dusty text" {
		t.Fatalf("description = %q, want rewritten text", got.Description)
	}
}

func TestSchedulerContinuesPastFailures(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	defer database.Close()

	insertLecture(t, database, "lec_a", "A", "a", "text a", 30*24*time.Hour)
	insertLecture(t, database, "lec_b", "B", "b", "text b", 30*24*time.Hour)

	lectures := db.NewLectureRepository(database)
	rewriter := &fakeRewriter{fail: map[string]bool{"A": true}}
	s := NewScheduler(lectures, rewriter, metrics.Nop{}, 0, 15*24*time.Hour)

	s.run(context.Background())

	got, err := lectures.FindByID(context.Background(), "lec_b")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Description != "rewritten: text b" {
		t.Fatalf("description = %q, failed lecture must not block the rest", got.Description)
	}

	gotA, err := lectures.FindByID(context.Background(), "lec_a")
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if gotA.Description != "text a" {
		t.Fatalf("description = %q, want original left untouched", gotA.Description)
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	defer database.Close()

	lectures := db.NewLectureRepository(database)
	rewriter := &fakeRewriter{}
	s := NewScheduler(lectures, rewriter, metrics.Nop{}, time.Hour, 15*24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancellation")
	}
	if len(rewriter.calls) != 0 {
		t.Fatalf("rewriter was called before the delay elapsed: %v", rewriter.calls)
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"lectoria/internal/auth"
	"lectoria/internal/blob"
	"lectoria/internal/config"
	"lectoria/internal/db"
	"lectoria/internal/metrics"
	"lectoria/internal/models"
)

type delivery struct {
	subject    string
	recipients []string
	template   string
	vars       map[string]any
}

type fakeMailer struct {
	deliveries []delivery
}

func (m *fakeMailer) Deliver(subject string, recipients []string, template string, vars map[string]any) error {
	m.deliveries = append(m.deliveries, delivery{subject, recipients, template, vars})
	return nil
}

func (m *fakeMailer) byTemplate(template string) *delivery {
	for i := range m.deliveries {
		if m.deliveries[i].template == template {
			return &m.deliveries[i]
		}
	}
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Name:       "Lectoria",
			BaseURL:    "https://example.com",
			AdminEmail: "admin@example.com",
		},
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret-test-secret-test-secret",
			AccessTokenTTL: time.Hour,
			TokenTTL:       24 * time.Hour,
		},
	}
}

func newTestServer(t *testing.T) (*Server, *db.DB, *fakeMailer) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	blobs, err := blob.NewService(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("blob.NewService() error = %v", err)
	}

	mailer := &fakeMailer{}
	server := NewServer(testConfig(), database, mailer, nil, blobs, prometheus.NewRegistry(), metrics.Nop{})
	return server, database, mailer
}

func createActiveUser(t *testing.T, database *db.DB, username, email, password string, roles ...string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	user, err := db.NewUserRepository(database).Create(context.Background(), db.CreateUserParams{
		Username:       username,
		Email:          email,
		PasswordHash:   hash,
		IsActive:       true,
		EmailConfirmed: true,
	})
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	for _, role := range roles {
		if err := db.NewRoleRepository(database).Assign(context.Background(), user.ID, role); err != nil {
			t.Fatalf("assigning role %s: %v", role, err)
		}
	}
	return user
}

func login(t *testing.T, server *Server, email, password string) string {
	t.Helper()

	form := url.Values{"email": {email}, "password": {password}}
	rr := postForm(server, "/auth/login", form, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body=%q", rr.Code, rr.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	return resp.Token
}

func postForm(server *Server, path string, form url.Values, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	return rr
}

func doJSON(server *Server, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	return rr
}

func get(server *Server, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	return resp.Error.Code
}

func createLecture(t *testing.T, database *db.DB, title, slug string, active bool) *models.Lecture {
	t.Helper()

	l, err := db.NewLectureRepository(database).Create(context.Background(), db.LectureParams{
		Title:       title,
		Slug:        slug,
		Description: "About " + title,
		Content:     "<p>Body</p>",
		IsActive:    active,
	})
	if err != nil {
		t.Fatalf("creating lecture: %v", err)
	}
	return l
}

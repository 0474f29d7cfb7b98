package api

import (
	"net/http"
	"testing"

	"lectoria/internal/models"
)

func TestRewriteUnavailableWhenNotConfigured(t *testing.T) {
	server, database, _ := newTestServer(t)
	createActiveUser(t, database, "admin", "admin@example.com", "pass word", models.RoleAdmin)
	token := login(t, server, "admin@example.com", "pass word")

	rr := doJSON(server, http.MethodPost, "/api/textgen/rewrite", `{"title": "Bees", "text": "About bees"}`, token)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

func TestRewriteRequiresAdminAccess(t *testing.T) {
	server, database, _ := newTestServer(t)
	createActiveUser(t, database, "bob", "bob@example.com", "pass word", models.RoleUser)
	token := login(t, server, "bob@example.com", "pass word")

	rr := doJSON(server, http.MethodPost, "/api/textgen/rewrite", `{"title": "Bees", "text": "About bees"}`, token)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lectoria/internal/models"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func postAvatar(t *testing.T, server *Server, payload []byte, token string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "avatar.png")
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("writing upload body: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/profile/avatar", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)
	return rr
}

func avatarFromResponse(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		User struct {
			Avatar *string `json:"avatar"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if resp.User.Avatar == nil {
		t.Fatal("avatar not set after upload")
	}
	return *resp.User.Avatar
}

func TestAvatarUploadAndServe(t *testing.T) {
	server, database, _ := newTestServer(t)
	createActiveUser(t, database, "alice", "alice@example.com", "pass word", models.RoleUser)
	token := login(t, server, "alice@example.com", "pass word")

	payload := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)
	rr := postAvatar(t, server, payload, token)
	if rr.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body=%q", rr.Code, rr.Body.String())
	}

	avatar := avatarFromResponse(t, rr)
	if !strings.HasPrefix(avatar, "/media/avatar/") {
		t.Fatalf("avatar = %q, want /media/avatar/ prefix", avatar)
	}

	rr = get(server, avatar, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d", avatar, rr.Code)
	}
	if !bytes.Equal(rr.Body.Bytes(), payload) {
		t.Fatal("served avatar differs from upload")
	}
}

func TestAvatarUploadReplacesPrevious(t *testing.T) {
	server, database, _ := newTestServer(t)
	createActiveUser(t, database, "alice", "alice@example.com", "pass word", models.RoleUser)
	token := login(t, server, "alice@example.com", "pass word")

	payload := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)
	first := avatarFromResponse(t, postAvatar(t, server, payload, token))
	second := avatarFromResponse(t, postAvatar(t, server, payload, token))
	if first == second {
		t.Fatalf("second upload reused path %q", first)
	}

	// The replaced file is gone; the new one serves.
	if rr := get(server, first, ""); rr.Code != http.StatusNotFound {
		t.Fatalf("GET old avatar status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	if rr := get(server, second, ""); rr.Code != http.StatusOK {
		t.Fatalf("GET new avatar status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestAvatarUploadRejectsNonImage(t *testing.T) {
	server, database, _ := newTestServer(t)
	createActiveUser(t, database, "alice", "alice@example.com", "pass word", models.RoleUser)
	token := login(t, server, "alice@example.com", "pass word")

	rr := postAvatar(t, server, []byte("#!/bin/sh\nrm -rf /\n"), token)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}

	rr = postAvatar(t, server, []byte(nil), token)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty upload status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAvatarUploadRequiresAuth(t *testing.T) {
	server, _, _ := newTestServer(t)

	rr := postAvatar(t, server, pngHeader, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestMediaRejectsTraversal(t *testing.T) {
	server, _, _ := newTestServer(t)

	rr := get(server, "/media/../../etc/passwd", "")
	if rr.Code == http.StatusOK {
		t.Fatalf("traversal path served with status %d", rr.Code)
	}
}

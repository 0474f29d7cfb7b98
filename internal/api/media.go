package api

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"lectoria/internal/blob"
)

type MediaHandler struct {
	blobs *blob.Service
}

func NewMediaHandler(blobs *blob.Service) *MediaHandler {
	return &MediaHandler{blobs: blobs}
}

// GetFile serves a stored upload. Stored files are immutable: a replaced
// avatar gets a fresh path, so aggressive caching is safe.
func (h *MediaHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if path == "" {
		notFound(w, "Media not found")
		return
	}

	file, err := h.blobs.Open(path)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, blob.ErrInvalidPath) {
		notFound(w, "Media not found")
		return
	}
	if err != nil {
		internalError(w)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		notFound(w, "Media not found")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, info.Name(), time.Time{}, file)
}

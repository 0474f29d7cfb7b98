package api

import (
	"encoding/json"
	"net/http"

	"lectoria/internal/rewrite"
)

type TextgenHandler struct {
	rewriter rewrite.Rewriter
}

func NewTextgenHandler(rewriter rewrite.Rewriter) *TextgenHandler {
	return &TextgenHandler{rewriter: rewriter}
}

type rewriteRequest struct {
	Title string `json:"title"`
	Text  string `json:"text" validate:"required"`
}

// Rewrite lets back-office editors run a single text through the rewriter
// without touching any stored lecture.
func (h *TextgenHandler) Rewrite(w http.ResponseWriter, r *http.Request) {
	if h.rewriter == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "Text rewriting is not configured")
		return
	}

	var req rewriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if err := validateStruct(&req); err != nil {
		badRequest(w, err.Error())
		return
	}

	text, err := h.rewriter.Rewrite(r.Context(), req.Title, req.Text)
	if err != nil {
		writeError(w, http.StatusBadGateway, ErrCodeInternal, "Rewrite service unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"text": text})
}

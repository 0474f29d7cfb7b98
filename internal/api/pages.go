package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"lectoria/internal/db"
	"lectoria/internal/models"
)

const (
	defaultPageSize = 12
	maxPageSize     = 50
)

// htmlPolicy sanitizes operator-entered HTML before it leaves the API. Admin
// content is trusted-ish, but editors paste from everywhere.
var htmlPolicy = bluemonday.UGCPolicy()

type PagesHandler struct {
	sections *db.SectionRepository
	lectures *db.LectureRepository
	contacts *db.ContactRepository
	site     *db.SiteRepository
}

func NewPagesHandler(database *db.DB) *PagesHandler {
	return &PagesHandler{
		sections: db.NewSectionRepository(database),
		lectures: db.NewLectureRepository(database),
		contacts: db.NewContactRepository(database),
		site:     db.NewSiteRepository(database),
	}
}

func (h *PagesHandler) Home(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.site.ListHomeBlocks(r.Context(), true)
	if err != nil {
		internalError(w)
		return
	}
	for _, b := range blocks {
		b.Content = htmlPolicy.Sanitize(b.Content)
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

func (h *PagesHandler) Menu(w http.ResponseWriter, r *http.Request) {
	items, err := h.site.ListMenuItems(r.Context(), true)
	if err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *PagesHandler) Sections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.sections.ListActive(r.Context())
	if err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sections": sections})
}

// Section returns one section with a page of its lectures.
func (h *PagesHandler) Section(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	section, err := h.sections.FindActiveBySlug(r.Context(), slug)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Section not found")
		return
	}
	if err != nil {
		internalError(w)
		return
	}

	page, limit := paging(r)
	lectures, total, err := h.lectures.ListBySection(r.Context(), section.ID, limit, (page-1)*limit)
	if err != nil {
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"section":  section,
		"lectures": lectures,
		"page":     page,
		"limit":    limit,
		"total":    total,
	})
}

func (h *PagesHandler) Lecture(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	lecture, err := h.lectures.FindActiveBySlug(r.Context(), slug)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Lecture not found")
		return
	}
	if err != nil {
		internalError(w)
		return
	}

	lecture.Content = htmlPolicy.Sanitize(lecture.Content)

	var section *models.Section
	if lecture.SectionID != nil {
		if s, err := h.sections.FindByID(r.Context(), *lecture.SectionID); err == nil {
			section = s
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lecture": lecture,
		"section": section,
	})
}

func (h *PagesHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.contacts.ListActive(r.Context())
	if err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

func paging(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

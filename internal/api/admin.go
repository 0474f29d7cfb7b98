package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"lectoria/internal/admin"
	"lectoria/internal/db"
	"lectoria/internal/models"
)

type AdminHandler struct {
	registry *admin.Registry
	orders   *db.OrderRepository
	users    *db.UserRepository
	roles    *db.RoleRepository
	seo      *db.SeoRepository
}

func NewAdminHandler(registry *admin.Registry, database *db.DB) *AdminHandler {
	return &AdminHandler{
		registry: registry,
		orders:   db.NewOrderRepository(database),
		users:    db.NewUserRepository(database),
		roles:    db.NewRoleRepository(database),
		seo:      db.NewSeoRepository(database),
	}
}

func (h *AdminHandler) entity(w http.ResponseWriter, r *http.Request) (*admin.Entity, bool) {
	entity, err := h.registry.Get(chi.URLParam(r, "entity"))
	if err != nil {
		notFound(w, "Unknown entity")
		return nil, false
	}
	return entity, true
}

func (h *AdminHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entities": h.registry.Names()})
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entity(w, r)
	if !ok {
		return
	}

	items, err := entity.List(r.Context())
	if err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fields": entity.Fields,
		"items":  items,
	})
}

func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entity(w, r)
	if !ok {
		return
	}

	item, err := entity.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Not found")
		return
	}
	if err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entity(w, r)
	if !ok {
		return
	}

	values, ok := decodeValues(w, r)
	if !ok {
		return
	}

	item, err := entity.Create(r.Context(), values)
	if err != nil {
		writeEntityError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": item})
}

func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entity(w, r)
	if !ok {
		return
	}

	values, ok := decodeValues(w, r)
	if !ok {
		return
	}

	if err := entity.Update(r.Context(), chi.URLParam(r, "id"), values); err != nil {
		writeEntityError(w, err)
		return
	}

	item, err := entity.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	entity, ok := h.entity(w, r)
	if !ok {
		return
	}

	if err := entity.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeEntityError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.List(r.Context())
	if err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type orderStatusRequest struct {
	Status      *string `json:"status"`
	LecturerID  *string `json:"lecturerId"`
	LectureDate *string `json:"lectureDate"`
}

// UpdateOrderStatus applies operator decisions to a confirmed order. Status
// only ever moves forward: confirmed to processing, approved, or cancelled,
// and processing to approved or cancelled.
func (h *AdminHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req orderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	order, err := h.orders.FindByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Order not found")
		return
	}
	if err != nil {
		internalError(w)
		return
	}

	params := db.OperatorUpdateParams{}

	if req.Status != nil {
		if !order.CanTransition(*req.Status) {
			conflict(w, "Status cannot move from "+order.Status+" to "+*req.Status)
			return
		}
		params.Status = req.Status
	}

	if req.LecturerID != nil {
		lecturer, err := h.users.FindByID(r.Context(), *req.LecturerID)
		if errors.Is(err, db.ErrNotFound) {
			badRequest(w, "lecturer not found")
			return
		}
		if err != nil {
			internalError(w)
			return
		}
		lecturer.Roles, err = h.roles.ForUser(r.Context(), lecturer.ID)
		if err != nil {
			internalError(w)
			return
		}
		if !lecturer.HasRole(models.RoleLecturer) {
			badRequest(w, "user is not a lecturer")
			return
		}
		params.LecturerID = req.LecturerID
	}

	if req.LectureDate != nil {
		date, err := time.Parse(time.RFC3339, *req.LectureDate)
		if err != nil {
			badRequest(w, "lectureDate must be RFC 3339")
			return
		}
		params.LectureDate = &date
	}

	if params.Status == nil && params.LecturerID == nil && params.LectureDate == nil {
		badRequest(w, "nothing to update")
		return
	}

	if err := h.orders.OperatorUpdate(r.Context(), order.ID, params); err != nil {
		internalError(w)
		return
	}

	updated, err := h.orders.FindByID(r.Context(), order.ID)
	if err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": updated})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		internalError(w)
		return
	}

	out := make([]map[string]any, 0, len(users))
	for _, u := range users {
		u.Roles, err = h.roles.ForUser(r.Context(), u.ID)
		if err != nil {
			internalError(w)
			return
		}
		out = append(out, publicUser(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

type userRolesRequest struct {
	Assign []string `json:"assign"`
	Revoke []string `json:"revoke"`
}

func (h *AdminHandler) UpdateUserRoles(w http.ResponseWriter, r *http.Request) {
	var req userRolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	userID := chi.URLParam(r, "id")
	if _, err := h.users.FindByID(r.Context(), userID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "User not found")
			return
		}
		internalError(w)
		return
	}

	for _, role := range req.Assign {
		if err := h.roles.Assign(r.Context(), userID, role); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				badRequest(w, "unknown role "+role)
				return
			}
			internalError(w)
			return
		}
	}
	for _, role := range req.Revoke {
		if err := h.roles.Revoke(r.Context(), userID, role); err != nil && !errors.Is(err, db.ErrNotFound) {
			internalError(w)
			return
		}
	}

	roles, err := h.roles.ForUser(r.Context(), userID)
	if err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *AdminHandler) GetSeoSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.seo.Get(r.Context())
	if err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

type seoUpdateRequest struct {
	RobotsTxt              string  `json:"robotsTxt"`
	SitemapIncludeLectures bool    `json:"sitemapIncludeLectures"`
	SitemapIncludeSections bool    `json:"sitemapIncludeSections"`
	SitemapIncludePages    bool    `json:"sitemapIncludePages"`
	SitemapChangefreq      string  `json:"sitemapChangefreq"`
	SitemapPriority        float64 `json:"sitemapPriority"`
}

func (h *AdminHandler) UpdateSeoSettings(w http.ResponseWriter, r *http.Request) {
	var req seoUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	settings, err := h.seo.Get(r.Context())
	if err != nil {
		internalError(w)
		return
	}

	err = h.seo.Update(r.Context(), settings.ID, db.SeoParams{
		RobotsTxt:              req.RobotsTxt,
		SitemapIncludeLectures: req.SitemapIncludeLectures,
		SitemapIncludeSections: req.SitemapIncludeSections,
		SitemapIncludePages:    req.SitemapIncludePages,
		SitemapChangefreq:      req.SitemapChangefreq,
		SitemapPriority:        req.SitemapPriority,
	})
	if err != nil {
		internalError(w)
		return
	}

	updated, err := h.seo.Get(r.Context())
	if err != nil {
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": updated})
}

func decodeValues(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		badRequest(w, "invalid JSON body")
		return nil, false
	}
	return values, true
}

func writeEntityError(w http.ResponseWriter, err error) {
	var ferr *admin.FieldError
	switch {
	case errors.As(err, &ferr):
		badRequest(w, ferr.Error())
	case errors.Is(err, db.ErrNotFound):
		notFound(w, "Not found")
	case errors.Is(err, db.ErrDuplicate):
		conflict(w, "A record with that slug or name already exists")
	default:
		internalError(w)
	}
}

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"

	"lectoria/internal/admin"
	"lectoria/internal/auth"
	"lectoria/internal/blob"
	"lectoria/internal/booking"
	"lectoria/internal/config"
	"lectoria/internal/db"
	"lectoria/internal/email"
	"lectoria/internal/metrics"
	"lectoria/internal/models"
	"lectoria/internal/rewrite"
)

type Server struct {
	router *chi.Mux
	config *config.Config
}

func NewServer(
	cfg *config.Config,
	database *db.DB,
	mailer email.Mailer,
	rewriter rewrite.Rewriter,
	blobs *blob.Service,
	registry *prometheus.Registry,
	recorder metrics.Recorder,
) *Server {
	userRepo := db.NewUserRepository(database)
	roleRepo := db.NewRoleRepository(database)
	orderRepo := db.NewOrderRepository(database)

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	logger := slog.Default()

	bookingService := booking.NewService(database, mailer, recorder, logger, booking.Config{
		SiteName:   cfg.Server.Name,
		BaseURL:    cfg.Server.BaseURL,
		AdminEmail: cfg.Server.AdminEmail,
		TokenTTL:   cfg.Auth.TokenTTL,
	})

	pagesHandler := NewPagesHandler(database)
	bookingHandler := NewBookingHandler(bookingService)
	authHandler := NewAuthHandler(bookingService, userRepo, roleRepo, jwtService)
	profileHandler := NewProfileHandler(userRepo, orderRepo, blobs)
	mediaHandler := NewMediaHandler(blobs)
	contactHandler := NewContactFormHandler(mailer, recorder, cfg.Server.Name, cfg.Server.AdminEmail)
	seoHandler := NewSeoHandler(database, cfg.Server.BaseURL, cfg.Server.Name)
	adminHandler := NewAdminHandler(admin.NewRegistry(database), database)
	textgenHandler := NewTextgenHandler(rewriter)
	healthHandler := NewHealthHandler(database)

	authMiddleware := NewAuthMiddleware(jwtService, userRepo, roleRepo)

	authLimiter := httprate.LimitByIP(10, time.Minute)
	bookingLimiter := httprate.LimitByIP(5, time.Minute)

	// Avatar uploads are the one route allowed past the JSON/form body cap;
	// the upload handler enforces the configured upload limit itself.
	limitBody := maxBodySizeMiddleware(1 << 20) // 1 MB

	r := chi.NewRouter()
	r.Use(slogRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/healthz", healthHandler.Check)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(registry))

	r.Get("/", pagesHandler.Home)
	r.Get("/menu", pagesHandler.Menu)
	r.Get("/sections", pagesHandler.Sections)
	r.Get("/sections/{slug}", pagesHandler.Section)
	r.Get("/lectures/{slug}", pagesHandler.Lecture)
	r.Get("/contacts", pagesHandler.Contacts)
	r.With(bookingLimiter, limitBody).Post("/contact-form", contactHandler.Submit)

	r.Get("/sitemap.xml", seoHandler.Sitemap)
	r.Get("/robots.txt", seoHandler.Robots)
	r.Get("/feed.xml", seoHandler.Feed)

	r.Get("/media/*", mediaHandler.GetFile)

	r.Route("/order", func(r chi.Router) {
		r.Use(limitBody)
		r.With(bookingLimiter, authMiddleware.OptionalAuth).Post("/{lectureID}", bookingHandler.Submit)
		r.Get("/confirm/{token}", bookingHandler.Confirm)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(authLimiter)
		r.Use(limitBody)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Get("/confirm/{token}", authHandler.ConfirmEmail)
		r.Post("/reset_password_request", authHandler.RequestPasswordReset)
		r.Post("/reset_password/{token}", authHandler.CompletePasswordReset)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Get("/logout", authHandler.Logout)
		})
	})

	r.Route("/profile", func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)
		r.Get("/", profileHandler.Get)
		r.With(limitBody).Post("/", profileHandler.Update)
		r.Post("/avatar", profileHandler.UploadAvatar)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)
		r.Use(RequireAdminAccess)
		r.Use(limitBody)

		r.Get("/", adminHandler.ListEntities)

		r.Get("/orders", adminHandler.ListOrders)
		r.Patch("/orders/{id}/status", adminHandler.UpdateOrderStatus)

		// Accounts, roles, and SEO settings are for admins alone.
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(models.RoleAdmin))
			r.Get("/users", adminHandler.ListUsers)
			r.Patch("/users/{id}/roles", adminHandler.UpdateUserRoles)
			r.Get("/seo", adminHandler.GetSeoSettings)
			r.Put("/seo", adminHandler.UpdateSeoSettings)
		})

		r.Get("/{entity}", adminHandler.List)
		r.Post("/{entity}", adminHandler.Create)
		r.Get("/{entity}/{id}", adminHandler.Get)
		r.Put("/{entity}/{id}", adminHandler.Update)
		r.Delete("/{entity}/{id}", adminHandler.Delete)
	})

	r.Route("/api/textgen", func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)
		r.Use(RequireAdminAccess)
		r.Use(limitBody)
		r.Post("/rewrite", textgenHandler.Rewrite)
	})

	return &Server{router: r, config: cfg}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func maxBodySizeMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}

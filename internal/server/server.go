package server

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"golang.org/x/crypto/hkdf"

	"github.com/hongminglow/punchclock/internal/auth"
	"github.com/hongminglow/punchclock/internal/backend"
	"github.com/hongminglow/punchclock/internal/config"
	"github.com/hongminglow/punchclock/internal/http/handlers"
	"github.com/hongminglow/punchclock/internal/identity"
	"github.com/hongminglow/punchclock/internal/middleware"
	"github.com/hongminglow/punchclock/internal/storage"
	"github.com/hongminglow/punchclock/internal/view"
)

const csrfCookie = "punchclock_csrf"

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up clients, middleware and routes, and returns a ready server.
func New(cfg config.Config, store storage.StateStore) (*Server, error) {
	tokens := auth.NewTokenParser(cfg.IdentityJWTSecret)
	if !tokens.Verifies() {
		log.Println("IDENTITY_JWT_SECRET not set; access-token signatures are not verified")
	}
	idp := identity.NewClient(cfg.IdentityURL, cfg.IdentityAnonKey, tokens, cfg.RequestTimeout)
	api, err := backend.NewClient(cfg.BackendURL, cfg.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("backend client: %w", err)
	}
	ctrl := view.NewController(idp, api, view.Options{
		Location:           cfg.Location,
		GeolocationTimeout: cfg.GeolocationTimeout,
	})
	renderer, err := handlers.NewRenderer(handlers.ClientSettings{
		MapTileURL:         cfg.MapTileURL,
		GeolocationTimeout: cfg.GeolocationTimeout,
	})
	if err != nil {
		return nil, err
	}

	app := http.NewServeMux()
	handlers.NewPageHandler(ctrl, renderer).Register(app)
	handlers.NewAuthHandler(ctrl, renderer, store).Register(app)
	handlers.NewPunchHandler(ctrl, renderer).Register(app)
	handlers.NewTeamHandler(ctrl, renderer).Register(app)

	key, err := csrfKey(cfg.SessionSecret)
	if err != nil {
		return nil, err
	}
	protect := csrf.Protect(key,
		csrf.Secure(cfg.SecureCookies),
		csrf.Path("/"),
		csrf.CookieName(csrfCookie),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
	)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now()).Register(mux)
	mux.Handle("GET /static/", handlers.Static())
	mux.Handle("/", middleware.Chain(app,
		plaintext(!cfg.SecureCookies),
		protect,
		middleware.Session(store, middleware.SessionConfig{Secure: cfg.SecureCookies}),
	))

	handler := middleware.Chain(mux,
		middleware.Logging,
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{
			ContentSecurityPolicy: contentSecurityPolicy(cfg.MapTileURL),
			PermissionsPolicy:     "camera=(), microphone=(), geolocation=(self)",
		}),
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.GeolocationTimeout + 3*cfg.RequestTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}, nil
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

// Handler exposes the wired handler chain.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

func csrfKey(secret string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte("punchclock csrf")), key); err != nil {
		return nil, fmt.Errorf("derive csrf key: %w", err)
	}
	return key, nil
}

// plaintext marks requests as plain HTTP so the CSRF check skips the TLS-only
// referer validation during local development.
func plaintext(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	log.Printf("csrf: %s %s: %v", r.Method, r.URL.Path, csrf.FailureReason(r))
	http.Error(w, "Forbidden - invalid or missing form token. Reload the page and try again.", http.StatusForbidden)
}

func contentSecurityPolicy(tileURL string) string {
	img := []string{"'self'", "data:", "https://unpkg.com"}
	if src := tileSource(tileURL); src != "" {
		img = append(img, src)
	}
	return strings.Join([]string{
		"default-src 'self'",
		"script-src 'self' https://unpkg.com",
		"style-src 'self' https://unpkg.com 'unsafe-inline'",
		"img-src " + strings.Join(img, " "),
		"connect-src 'self'",
		"frame-ancestors 'none'",
	}, "; ")
}

// tileSource turns a Leaflet tile template into a CSP source, mapping the {s}
// subdomain placeholder to a wildcard.
func tileSource(tileURL string) string {
	u, err := url.Parse(strings.ReplaceAll(tileURL, "{s}", "*"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

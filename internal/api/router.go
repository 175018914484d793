package api

import (
	"image"
	"io"
	"net/http"

	"cogentcore.org/core/math32"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"vibeverse/internal/session"
)

// SessionInterface is the part of a portal session the API drives.
// Keep it minimal so tests can fake it without a frame loop.
type SessionInterface interface {
	// Snapshot returns the latest immutable session state
	Snapshot() *session.Snapshot
	// MovePlayer sets (or offsets, when relative) the player position
	MovePlayer(pos math32.Vector3, relative bool) math32.Vector3
	// SwapAvatar queues an avatar load for a rig ("" is the local player)
	SwapAvatar(rig, src string) <-chan error
	StartWarp()
	StopWarp()
	SetHUDVisible(visible bool)
	RenderHUD(w io.Writer) error
	// LabelImage returns the label texture of the portal with the given role
	LabelImage(role string) (image.Image, error)
	Preview(width, height int) image.Image
}

// EventStatsSource reports event log counters.
type EventStatsSource interface {
	Stats() map[string]any
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Session:        fakeSession,
//	    DisableLogging: true,
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Session is the portal session (required)
	Session SessionInterface

	// Events is optional; /api/events/stats answers 404 without it.
	Events EventStatsSource

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	// If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses DefaultCORSOrigins.
	CORSOrigins []string

	// PreviewWidth and PreviewHeight size /api/preview.png when the
	// request does not ask for a size.
	PreviewWidth  int
	PreviewHeight int

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// DefaultCORSOrigins allows local development pages and the portal hub.
var DefaultCORSOrigins = []string{
	"http://localhost:*",
	"http://127.0.0.1:*",
	"https://portal.pieter.com",
}

type routerHandlers struct {
	session       SessionInterface
	events        EventStatsSource
	previewWidth  int
	previewHeight int
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// It has no side effects beyond what the rate limiter starts (one cleanup
// goroutine when none is supplied): no listeners and no broadcast loops.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = DefaultCORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		session:       cfg.Session,
		events:        cfg.Events,
		previewWidth:  cfg.PreviewWidth,
		previewHeight: cfg.PreviewHeight,
	}
	if h.previewWidth <= 0 {
		h.previewWidth = DefaultPreviewWidth
	}
	if h.previewHeight <= 0 {
		h.previewHeight = DefaultPreviewHeight
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleGetState)
		r.Get("/preview.png", h.handlePreview)
		r.Get("/events/stats", h.handleEventStats)

		// Player
		r.Post("/player/move", h.handlePlayerMove)
		r.Post("/avatar", h.handleAvatarSwap)

		// Portals
		r.Get("/portals", h.handleGetPortals)
		r.Get("/portals/{role}/label.png", h.handlePortalLabel)

		// Warp control
		r.Post("/warp/start", h.handleWarpStart)
		r.Post("/warp/stop", h.handleWarpStop)

		// HUD
		r.Post("/hud/show", h.handleHUDShow)
		r.Post("/hud/hide", h.handleHUDHide)
	})

	r.Get("/hud", h.handleHUD)
	r.Get("/health", handleHealth)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/hud", http.StatusFound)
	})

	return r
}

package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"gitea.jw6.us/james/calhub/internal/api"
	"gitea.jw6.us/james/calhub/internal/auth"
	"gitea.jw6.us/james/calhub/internal/config"
	"gitea.jw6.us/james/calhub/internal/dav"
	"gitea.jw6.us/james/calhub/internal/http/ratelimit"
	"gitea.jw6.us/james/calhub/internal/metrics"
	"gitea.jw6.us/james/calhub/internal/store"
)

// routedMethods holds every verb chi can dispatch once the DAV verbs are
// registered.
var routedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodConnect: true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

func init() {
	for _, method := range []string{
		dav.MethodPropfind,
		dav.MethodReport,
		dav.MethodMkcol,
		dav.MethodMkcalendar,
		"PROPPATCH",
		"LOCK",
		"UNLOCK",
		"COPY",
		"MOVE",
	} {
		chi.RegisterMethod(method)
		routedMethods[method] = true
	}
}

const (
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS, PROPFIND, REPORT, MKCOL"
	corsAllowHeaders = "Authorization, Content-Type, Accept, Depth, Prefer"
	limiterIdle      = 5 * time.Minute
)

// Pinger reports database readiness.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// NewRouter wires the REST API, CalDAV and operational endpoints. The
// limiter's cleanup loop runs until ctx is cancelled.
func NewRouter(ctx context.Context, cfg *config.Config, st *store.Store, authService *auth.Service, oidc *auth.OIDC) http.Handler {
	return newRouter(ctx, cfg, st, st, authService, oidc)
}

func newRouter(ctx context.Context, cfg *config.Config, st *store.Store, ready Pinger, authService *auth.Service, oidc *auth.OIDC) http.Handler {
	r := chi.NewRouter()

	limiter := ratelimit.NewIPRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst, limiterIdle, cfg.TrustedProxies)
	go limiter.Run(ctx, limiterIdle)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(cors(cfg.CORSAllowedOrigin))

	apiHandler := api.NewHandler(st, authService, oidc)

	r.Get("/health", apiHandler.Health)
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := ready.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	r.Get("/.well-known/caldav", dav.Discovery)

	davHandler := dav.NewHandler(st)
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware())
		// OPTIONS must stay reachable without credentials for client discovery.
		r.Use(requireDAVAuth(authService))
		r.HandleFunc("/calendars", davHandler.Collection)
		r.HandleFunc("/calendars/", davHandler.Collection)
		r.HandleFunc("/calendars/{calendarID}", davHandler.Calendar)
		r.HandleFunc("/calendars/{calendarID}/", davHandler.Calendar)
		r.HandleFunc("/calendars/{calendarID}/{resource}", davHandler.Resource)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware())

		r.Post("/auth/register", apiHandler.Register)
		r.Post("/auth/login", apiHandler.Login)
		if apiHandler.OIDCEnabled() {
			r.Get("/auth/oidc/login", apiHandler.OIDCLogin)
			r.Get("/auth/oidc/callback", apiHandler.OIDCCallback)
		}

		r.Group(func(r chi.Router) {
			r.Use(authService.RequireToken)

			r.Get("/users/me", apiHandler.Me)
			r.Get("/users/{id}", apiHandler.GetUser)

			r.Get("/calendars", apiHandler.ListCalendars)
			r.Post("/calendars", apiHandler.CreateCalendar)
			r.Get("/calendars/{id}", apiHandler.GetCalendar)
			r.Put("/calendars/{id}", apiHandler.UpdateCalendar)
			r.Delete("/calendars/{id}", apiHandler.DeleteCalendar)
			r.Get("/calendars/{id}/events", apiHandler.ListCalendarEvents)
			r.Post("/calendars/{id}/import", apiHandler.ImportCalendar)
			r.Get("/calendars/{id}/shares", apiHandler.ListShares)
			r.Post("/calendars/{id}/shares", apiHandler.CreateShare)
			r.Delete("/shares/{id}", apiHandler.DeleteShare)

			r.Post("/events", apiHandler.CreateEvent)
			r.Get("/events/{id}", apiHandler.GetEvent)
			r.Put("/events/{id}", apiHandler.UpdateEvent)
			r.Delete("/events/{id}", apiHandler.DeleteEvent)
		})
	})

	return collectionFallback(r)
}

// collectionFallback serves verbs chi cannot route as PROPFIND when they
// target the calendar collection, which answers any verb it does not claim.
func collectionFallback(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !routedMethods[r.Method] && (r.URL.Path == "/calendars" || r.URL.Path == "/calendars/") {
			r = r.Clone(r.Context())
			r.Method = dav.MethodPropfind
		}
		next.ServeHTTP(w, r)
	})
}

func requireDAVAuth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := authService.RequireDAVAuth(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// cors applies permissive CORS headers and answers preflight requests for
// routes that do not handle OPTIONS themselves.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Expose-Headers", "ETag, Location, DAV")
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/memberdesk/memberdesk/internal/auth"
	"github.com/memberdesk/memberdesk/internal/observability"
	"github.com/memberdesk/memberdesk/internal/shared"
	"github.com/memberdesk/memberdesk/internal/users"
	"github.com/memberdesk/memberdesk/internal/view"
	"github.com/memberdesk/memberdesk/jobs"
	"github.com/memberdesk/memberdesk/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthHandler    *auth.Handler
	UsersHandler   *users.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Memberdesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if static, err := fs.Sub(web.Static, "static"); err == nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}

	// Landing page for unauthenticated visitors.
	r.Get("/welcome", func(w http.ResponseWriter, r *http.Request) {
		renderPage(params, w, r, "pages/landing.html", "Memberdesk", nil)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Protected subtree: every route below runs behind the session guard.
	r.Group(func(r chi.Router) {
		r.Use(RequireSession)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			renderPage(params, w, r, "pages/home.html", "Home", map[string]any{
				"AppEnv": params.Config.AppEnv,
			})
		})

		r.Get("/profile", params.AuthHandler.ShowProfile)

		if params.UsersHandler != nil {
			r.Route("/users", func(r chi.Router) {
				r.Use(RequireRole(auth.RoleAdmin))
				params.UsersHandler.MountRoutes(r)
			})
		}

		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(RequireRole(auth.RoleAdmin))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}

func renderPage(params RouterParams, w http.ResponseWriter, r *http.Request, page, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	var current *shared.SessionUser
	if sess != nil {
		flash = sess.PopFlash()
		current = sess.User()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		CurrentUser: current,
		Data:        data,
	}
	if err := params.Templates.Render(w, page, viewData); err != nil {
		params.Logger.Error("render page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

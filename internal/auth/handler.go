package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/memberdesk/memberdesk/internal/observability"
	"github.com/memberdesk/memberdesk/internal/shared"
	"github.com/memberdesk/memberdesk/internal/view"
	"github.com/memberdesk/memberdesk/jobs"
)

// TaskEnqueuer queues background tasks. *asynq.Client satisfies it; a nil
// enqueuer disables background work.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// HandlerConfig tunes handler behavior.
type HandlerConfig struct {
	// RedirectOnSuccess selects the historical redirect contract for
	// successful browser logins/signups. When false the handler answers
	// with a result flag and leaves navigation to the client.
	RedirectOnSuccess bool
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	resolver       *Resolver
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	enqueuer       TaskEnqueuer
	metrics        *observability.Metrics
	cfg            HandlerConfig
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver *Resolver, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, enqueuer TaskEnqueuer, metrics *observability.Metrics, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		resolver:       resolver,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		enqueuer:       enqueuer,
		metrics:        metrics,
		cfg:            cfg,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/signup", h.showSignup)
	r.Post("/signup", h.handleSignup)
	r.Get("/session", h.handleWhoAmI)
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	RedirectURL string `json:"redirect_url"`
}

type signupForm struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	RedirectURL string `json:"redirect_url"`
}

type authPageData struct {
	Email     string
	FirstName string
	LastName  string
	Redirect  string
	Errors    map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.renderAuthPage(w, r, "pages/login.html", "Log in", authPageData{Redirect: safeRedirect(r.URL.Query().Get("redirect_url"))}, http.StatusOK)
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	h.renderAuthPage(w, r, "pages/signup.html", "Sign up", authPageData{}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if !h.decodeForm(w, r, &form, func() {
		form.Email = r.PostFormValue("email")
		form.Password = r.PostFormValue("password")
		form.RedirectURL = r.PostFormValue("redirect_url")
	}) {
		return
	}

	sess := shared.SessionFromContext(r.Context())
	result, err := h.service.Login(r.Context(), sess, form.Email, form.Password)
	if err != nil {
		h.logger.Error("login", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveLogin(loginOutcome(result))
	if result.Error {
		if wantsJSON(r) {
			writeJSON(w, http.StatusUnauthorized, loginResultBody(result))
			return
		}
		h.renderAuthPage(w, r, "pages/login.html", "Log in", authPageData{
			Email:    form.Email,
			Redirect: safeRedirect(form.RedirectURL),
			Errors:   map[string]string{"general": result.Message},
		}, http.StatusUnauthorized)
		return
	}

	h.recordLoginSession(r, sess, result.User)
	h.succeed(w, r, sess, result, form.RedirectURL)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var form signupForm
	if !h.decodeForm(w, r, &form, func() {
		form.Email = r.PostFormValue("email")
		form.Password = r.PostFormValue("password")
		form.FirstName = r.PostFormValue("first_name")
		form.LastName = r.PostFormValue("last_name")
		form.RedirectURL = r.PostFormValue("redirect_url")
	}) {
		return
	}

	sess := shared.SessionFromContext(r.Context())
	result, err := h.service.Signup(r.Context(), sess, SignupInput{
		Email:     form.Email,
		Password:  form.Password,
		FirstName: form.FirstName,
		LastName:  form.LastName,
	})
	if err != nil {
		h.logger.Error("signup", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveSignup(signupOutcome(result))
	if result.Error {
		if wantsJSON(r) {
			status := http.StatusBadRequest
			if result.UserExists {
				status = http.StatusConflict
			}
			writeJSON(w, status, signupResultBody(result))
			return
		}
		issues := result.Issues
		if issues == nil {
			issues = map[string]string{"general": result.Message}
		}
		h.renderAuthPage(w, r, "pages/signup.html", "Sign up", authPageData{
			Email:     form.Email,
			FirstName: form.FirstName,
			LastName:  form.LastName,
			Redirect:  safeRedirect(form.RedirectURL),
			Errors:    issues,
		}, http.StatusBadRequest)
		return
	}

	h.recordLoginSession(r, sess, result.User)
	h.enqueueWelcomeEmail(result.User)
	h.succeed(w, r, sess, result, form.RedirectURL)
}

// handleWhoAmI answers the lightweight "is anyone logged in" probe with the
// session snapshot (null when the session is empty) plus the CSRF token, so
// JSON clients can obtain the token without scraping an HTML form.
func (h *Handler) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("issue csrf token", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	body := map[string]any{"user": nil, "csrfToken": csrfToken}
	if snapshot := h.resolver.FetchSessionUser(r.Context()); snapshot != nil {
		body["user"] = snapshot
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveLoginSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove login session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"error": false, "message": "Logged out"})
		return
	}
	http.Redirect(w, r, "/welcome", http.StatusSeeOther)
}

// ShowProfile renders the profile page from canonical store data. A missing
// session surfaces as ErrUnauthenticated from the resolver, which turns into
// the login form rather than an error page.
func (h *Handler) ShowProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.resolver.GetCurrentUser(r.Context())
	if err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) {
			h.renderAuthPage(w, r, "pages/login.html", "Log in", authPageData{Redirect: r.URL.Path}, http.StatusUnauthorized)
			return
		}
		h.logger.Error("resolve current user", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/profile.html", "Profile", map[string]any{"Profile": profile}, http.StatusOK)
}

func (h *Handler) succeed(w http.ResponseWriter, r *http.Request, sess *shared.Session, result Result, redirectURL string) {
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome, " + result.User.FirstName})
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"error": false, "message": result.Message})
		return
	}
	if h.cfg.RedirectOnSuccess {
		http.Redirect(w, r, safeRedirect(redirectURL), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"error": false, "message": result.Message})
}

func (h *Handler) recordLoginSession(r *http.Request, sess *shared.Session, user *User) {
	if sess == nil || sess.ID == "" || user == nil {
		h.logger.Error("session missing during auth success")
		return
	}
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterLoginSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register login session", slog.Any("error", err))
	}
}

func (h *Handler) enqueueWelcomeEmail(user *User) {
	if h.enqueuer == nil || user == nil {
		return
	}
	task, err := jobs.NewWelcomeEmailTask(jobs.WelcomeEmailPayload{To: user.Email, FirstName: user.FirstName})
	if err != nil {
		h.logger.Warn("build welcome email task", slog.Any("error", err))
		return
	}
	if _, err := h.enqueuer.Enqueue(task); err != nil {
		h.logger.Warn("enqueue welcome email", slog.Any("error", err))
	}
}

// decodeForm fills form from a JSON body or an urlencoded form. It reports
// false after writing the error response itself.
func (h *Handler) decodeForm(w http.ResponseWriter, r *http.Request, dst any, fromForm func()) bool {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": true, "message": "Malformed request body"})
			return false
		}
		return true
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	fromForm()
	return true
}

func (h *Handler) renderAuthPage(w http.ResponseWriter, r *http.Request, page, title string, data authPageData, status int) {
	h.render(w, r, page, title, data, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
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
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render page", slog.String("page", page), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func loginOutcome(result Result) string {
	switch {
	case result.UserNotFound:
		return "user_not_found"
	case result.WrongPassword:
		return "wrong_password"
	case result.Error:
		return "invalid"
	default:
		return "success"
	}
}

func signupOutcome(result Result) string {
	switch {
	case result.UserExists:
		return "user_exists"
	case result.Error:
		return "invalid"
	default:
		return "success"
	}
}

func loginResultBody(result Result) map[string]any {
	body := map[string]any{"error": true, "message": result.Message}
	if result.UserNotFound {
		body["userNotFound"] = true
	}
	if result.WrongPassword {
		body["wrongPassword"] = true
	}
	return body
}

func signupResultBody(result Result) map[string]any {
	body := map[string]any{"error": true, "message": result.Message}
	if result.UserExists {
		body["userExists"] = true
	}
	if len(result.Issues) > 0 {
		body["issues"] = result.Issues
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		_, _ = w.Write([]byte("null"))
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// safeRedirect keeps post-auth navigation on-site.
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return "/"
	}
	return target
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleSignupForTest exposes the POST handler for tests.
func (h *Handler) HandleSignupForTest(w http.ResponseWriter, r *http.Request) {
	h.handleSignup(w, r)
}

// HandleWhoAmIForTest exposes the session probe for tests.
func (h *Handler) HandleWhoAmIForTest(w http.ResponseWriter, r *http.Request) {
	h.handleWhoAmI(w, r)
}

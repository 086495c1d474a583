package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/HammerMeetNail/ficarchive-web/internal/assets"
	"github.com/HammerMeetNail/ficarchive-web/internal/blocking"
	"github.com/HammerMeetNail/ficarchive-web/internal/logging"
	"github.com/HammerMeetNail/ficarchive-web/internal/models"
	"github.com/HammerMeetNail/ficarchive-web/internal/views"
)

const siteTitle = "Fan Fiction Archive"

type PageHandler struct {
	templates *template.Template
	registry  *blocking.Registry
	assets    *assets.Manifest
	now       func() time.Time
}

func NewPageHandler(templatesDir string, registry *blocking.Registry, manifest *assets.Manifest) (*PageHandler, error) {
	templates, err := template.ParseGlob(filepath.Join(templatesDir, "*.html"))
	if err != nil {
		return nil, err
	}

	return &PageHandler{
		templates: templates,
		registry:  registry,
		assets:    manifest,
		now:       time.Now,
	}, nil
}

// Templates exposes the parsed set so control endpoints render the same fragment.
func (h *PageHandler) Templates() *template.Template {
	return h.templates
}

type PageData struct {
	Title       string
	Breadcrumbs []views.Crumb
	Footer      views.FooterData
	Stylesheet  string
	Script      string
	SignedIn    bool
	Viewer      string
	Profile     string
	Control     *ControlFragment
}

func (h *PageHandler) pageData(r *http.Request, title string) PageData {
	data := PageData{
		Title:       title,
		Breadcrumbs: views.Breadcrumbs(r.URL.EscapedPath()),
		Footer:      views.Footer(h.now().Year()),
	}
	if h.assets != nil {
		data.Stylesheet = h.assets.Stylesheet()
		data.Script = h.assets.BlockControlScript()
	}
	if cred := GetCredentialFromContext(r.Context()); cred != nil {
		data.SignedIn = true
		data.Viewer = cred.Username
	}
	return data
}

func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index.html", h.pageData(r, siteTitle))
}

// Profile renders a user's page with a freshly mounted blocking control.
// Unknown variant or size values fall back to the defaults. Viewers never see
// a control on their own profile.
func (h *PageHandler) Profile(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		h.NotFound(w, r)
		return
	}

	data := h.pageData(r, username+" - "+siteTitle)
	data.Profile = username

	owner := GetOwnerFromContext(r.Context())
	if owner != "" && !strings.EqualFold(data.Viewer, username) {
		q := r.URL.Query()
		variant, _ := blocking.ParseVariant(q.Get("variant"))
		size, _ := blocking.ParseSize(q.Get("size"))

		target := models.BlockTarget{Username: username, UserID: strings.TrimSpace(q.Get("user_id"))}
		if errors.Is(target.Validate(), models.ErrInvalidTarget) {
			target.UserID = ""
		}
		id, control, err := mountControl(h.registry, owner, target, blocking.Options{
			Variant: variant,
			Size:    size,
			Class:   "profile-actions__block",
		})
		if err != nil {
			logging.FromContext(r.Context()).Error("Mounting block control failed", map[string]interface{}{
				"error":   err.Error(),
				"profile": username,
			})
			h.InternalError(w, r)
			return
		}
		data.Control = &ControlFragment{ID: id, View: control.View()}
	}

	h.render(w, r, http.StatusOK, "profile.html", data)
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data PageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		logging.FromContext(r.Context()).Error("Template error", map[string]interface{}{
			"template": name,
			"error":    err.Error(),
		})
	}
}

// NotFound renders the 404 error page.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := h.templates.ExecuteTemplate(w, "404.html", h.pageData(r, "Page not found")); err != nil {
		http.Error(w, "Page not found", http.StatusNotFound)
	}
}

// InternalError renders the 500 error page.
func (h *PageHandler) InternalError(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	if err := h.templates.ExecuteTemplate(w, "500.html", h.pageData(r, "Something went wrong")); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

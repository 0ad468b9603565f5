package handlers

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/csrf"

	"github.com/hongminglow/punchclock/internal/middleware"
	"github.com/hongminglow/punchclock/internal/models"
	"github.com/hongminglow/punchclock/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ClientSettings are the browser-side knobs rendered into the page.
type ClientSettings struct {
	MapTileURL         string
	GeolocationTimeout time.Duration
}

// GeolocationTimeoutMS is the bounded wait handed to the page script.
func (s ClientSettings) GeolocationTimeoutMS() int64 {
	return s.GeolocationTimeout.Milliseconds()
}

type region int

const (
	regionApp region = iota
	regionPunches
	regionTeam
)

type pageData struct {
	view.Page
	CSRFField  template.HTML
	CSRFToken  string
	Client     ClientSettings
	PunchTypes []string
}

// Renderer executes the page and its htmx regions.
type Renderer struct {
	page    *template.Template
	app     *template.Template
	punches *template.Template
	team    *template.Template

	settings ClientSettings
}

// NewRenderer parses the embedded templates once.
func NewRenderer(settings ClientSettings) (*Renderer, error) {
	root, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	rd := &Renderer{settings: settings}
	for name, dst := range map[string]**template.Template{
		"page":    &rd.page,
		"app":     &rd.app,
		"punches": &rd.punches,
		"team":    &rd.team,
	} {
		t := root.Lookup(name)
		if t == nil {
			return nil, fmt.Errorf("template %q not defined", name)
		}
		*dst = t
	}
	return rd, nil
}

// Static serves the embedded page script and stylesheet.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// full renders the whole document, or just the app region for htmx requests.
func (rd *Renderer) full(w http.ResponseWriter, r *http.Request, st *view.State) {
	if isHTMX(r) {
		rd.render(w, r, st, regionApp)
		return
	}
	data := rd.data(r, st)
	data.Notice = st.TakeNotice()
	rd.execute(w, rd.page, data)
}

// render answers an action. htmx callers get the region fragment with any notice in
// an HX-Trigger header; plain form posts are redirected back to the page, which shows
// the notice as a banner.
func (rd *Renderer) render(w http.ResponseWriter, r *http.Request, st *view.State, which region) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if notice := st.TakeNotice(); notice != "" {
		trigger, err := json.Marshal(map[string]string{"notice": notice})
		if err == nil {
			w.Header().Set("HX-Trigger", string(trigger))
		}
	}

	t := rd.app
	if which == regionApp {
		// The request may have targeted a smaller region.
		w.Header().Set("HX-Retarget", "#app")
		w.Header().Set("HX-Reswap", "outerHTML")
	}
	switch which {
	case regionPunches:
		t = rd.punches
	case regionTeam:
		t = rd.team
	}
	rd.execute(w, t, rd.data(r, st))
}

func (rd *Renderer) data(r *http.Request, st *view.State) pageData {
	return pageData{
		Page:       st.Snapshot(),
		CSRFField:  csrf.TemplateField(r),
		CSRFToken:  csrf.Token(r),
		Client:     rd.settings,
		PunchTypes: models.PunchTypes,
	}
}

func (rd *Renderer) execute(w http.ResponseWriter, t *template.Template, data pageData) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		log.Printf("render %s: %v", t.Name(), err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func stateFrom(w http.ResponseWriter, r *http.Request) (*view.State, bool) {
	st, ok := middleware.StateFrom(r.Context())
	if !ok {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
	}
	return st, ok
}

// PageHandler serves the page load.
type PageHandler struct {
	ctrl     *view.Controller
	renderer *Renderer
}

// NewPageHandler constructs the handler.
func NewPageHandler(ctrl *view.Controller, renderer *Renderer) *PageHandler {
	return &PageHandler{ctrl: ctrl, renderer: renderer}
}

// Register wires the handler into a ServeMux.
func (h *PageHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
}

func (h *PageHandler) handleIndex(w http.ResponseWriter, r *http.Request) {
	st, ok := stateFrom(w, r)
	if !ok {
		return
	}
	h.ctrl.RenderAuth(r.Context(), st)
	h.renderer.full(w, r, st)
}

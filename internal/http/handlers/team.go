package handlers

import (
	"errors"
	"net/http"

	"github.com/hongminglow/punchclock/internal/models"
	"github.com/hongminglow/punchclock/internal/view"
)

// TeamHandler serves the manager panel actions. Every action answers with the
// re-rendered team region, or the whole app once the session or the panel is gone.
type TeamHandler struct {
	ctrl     *view.Controller
	renderer *Renderer
}

// NewTeamHandler constructs the handler.
func NewTeamHandler(ctrl *view.Controller, renderer *Renderer) *TeamHandler {
	return &TeamHandler{ctrl: ctrl, renderer: renderer}
}

// Register attaches team routes to the mux.
func (h *TeamHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /team/select", h.withForm(h.handleSelect))
	mux.HandleFunc("POST /team/filter", h.withForm(h.handleFilter))
	mux.HandleFunc("POST /team/punches/{id}/note", h.withForm(h.handleNote))
	mux.HandleFunc("POST /team/punches/{id}/decision", h.withForm(h.handleDecision))
}

type teamAction func(w http.ResponseWriter, r *http.Request, st *view.State) error

func (h *TeamHandler) withForm(action teamAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := stateFrom(w, r)
		if !ok {
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		err := action(w, r, st)
		if errors.Is(err, view.ErrNoSession) || errors.Is(err, view.ErrNotManager) || st.Session() == nil {
			h.ctrl.RenderAuth(r.Context(), st)
			h.renderer.render(w, r, st, regionApp)
			return
		}
		h.renderer.render(w, r, st, regionTeam)
	}
}

func (h *TeamHandler) handleSelect(_ http.ResponseWriter, r *http.Request, st *view.State) error {
	return h.ctrl.SelectMember(r.Context(), st, r.PostForm.Get("member_id"))
}

func (h *TeamHandler) handleFilter(_ http.ResponseWriter, r *http.Request, st *view.State) error {
	return h.ctrl.ApplyFilter(r.Context(), st, view.Filter{
		Start: r.PostForm.Get("start"),
		End:   r.PostForm.Get("end"),
	})
}

func (h *TeamHandler) handleNote(_ http.ResponseWriter, r *http.Request, st *view.State) error {
	id := models.PunchID(r.PathValue("id"))
	return h.ctrl.EditNote(r.Context(), st, r.PostForm.Get("member_id"), id, r.PostForm.Get("note"))
}

func (h *TeamHandler) handleDecision(_ http.ResponseWriter, r *http.Request, st *view.State) error {
	id := models.PunchID(r.PathValue("id"))
	return h.ctrl.Decide(r.Context(), st, r.PostForm.Get("member_id"), id, r.PostForm.Get("action"))
}

package handlers

import (
	"errors"
	"net/http"
	"slices"

	"github.com/hongminglow/punchclock/internal/geo"
	"github.com/hongminglow/punchclock/internal/models"
	"github.com/hongminglow/punchclock/internal/view"
)

// PunchHandler accepts punch submissions from the four punch buttons.
type PunchHandler struct {
	ctrl     *view.Controller
	renderer *Renderer
}

// NewPunchHandler constructs the handler.
func NewPunchHandler(ctrl *view.Controller, renderer *Renderer) *PunchHandler {
	return &PunchHandler{ctrl: ctrl, renderer: renderer}
}

// Register wires the handler into a ServeMux.
func (h *PunchHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /punch", h.handlePunch)
}

func (h *PunchHandler) handlePunch(w http.ResponseWriter, r *http.Request) {
	st, ok := stateFrom(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	punchType := r.PostForm.Get("type")
	if !slices.Contains(models.PunchTypes, punchType) {
		http.Error(w, "unknown punch type", http.StatusBadRequest)
		return
	}

	err := h.ctrl.Punch(r.Context(), st, punchType, geo.FromForm(r.PostForm))
	if errors.Is(err, view.ErrNoSession) || st.Session() == nil {
		h.ctrl.RenderAuth(r.Context(), st)
		h.renderer.render(w, r, st, regionApp)
		return
	}
	h.renderer.render(w, r, st, regionPunches)
}

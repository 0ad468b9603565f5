package handlers

import (
	"log"
	"net/http"

	"github.com/hongminglow/punchclock/internal/storage"
	"github.com/hongminglow/punchclock/internal/view"
)

// AuthHandler owns the sign-in and sign-out actions.
type AuthHandler struct {
	ctrl     *view.Controller
	renderer *Renderer
	states   storage.StateStore
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(ctrl *view.Controller, renderer *Renderer, states storage.StateStore) *AuthHandler {
	return &AuthHandler{ctrl: ctrl, renderer: renderer, states: states}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.HandleFunc("POST /logout", h.handleLogout)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	st, ok := stateFrom(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	// The provider's message is already on the state as a notice.
	_ = h.ctrl.SignIn(r.Context(), st, r.PostForm.Get("email"), r.PostForm.Get("password"))
	h.renderer.render(w, r, st, regionApp)
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	st, ok := stateFrom(w, r)
	if !ok {
		return
	}
	h.ctrl.SignOut(r.Context(), st)
	h.renderer.render(w, r, st, regionApp)
	// The browser starts over with a fresh state on its next request.
	if err := h.states.Delete(r.Context(), st.ID()); err != nil {
		log.Printf("logout: drop view state: %v", err)
	}
}

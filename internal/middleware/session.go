package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/hongminglow/punchclock/internal/storage"
	"github.com/hongminglow/punchclock/internal/view"
)

// SessionCookie names the cookie that binds a browser to its view state.
const SessionCookie = "punchclock_session"

type stateKey struct{}

// SessionConfig controls the browser cookie.
type SessionConfig struct {
	Secure bool
}

// Session loads the caller's view state, creating one for new or expired browsers,
// and puts it on the request context.
func Session(store storage.StateStore, cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, err := loadState(r, store)
			if err != nil {
				if !errors.Is(err, storage.ErrNotFound) {
					log.Printf("session: load state: %v", err)
				}
				st = view.NewState(uuid.NewString())
				if err := store.Save(r.Context(), st); err != nil {
					log.Printf("session: save state: %v", err)
					http.Error(w, "session unavailable", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    st.ID(),
					Path:     "/",
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithState(r.Context(), st)))
		})
	}
}

func loadState(r *http.Request, store storage.StateStore) (*view.State, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return nil, storage.ErrNotFound
	}
	return store.Load(r.Context(), c.Value)
}

// WithState returns a copy of ctx carrying st.
func WithState(ctx context.Context, st *view.State) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// StateFrom returns the view state placed on ctx by Session.
func StateFrom(ctx context.Context) (*view.State, bool) {
	st, ok := ctx.Value(stateKey{}).(*view.State)
	return st, ok && st != nil
}

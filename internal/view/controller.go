package view

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hongminglow/punchclock/internal/backend"
	"github.com/hongminglow/punchclock/internal/geo"
	"github.com/hongminglow/punchclock/internal/identity"
	"github.com/hongminglow/punchclock/internal/models"
	"github.com/hongminglow/punchclock/internal/models/dto"
)

var (
	// ErrNoSession is returned by actions that need a signed-in user.
	ErrNoSession = errors.New("no active session")
	// ErrNotManager is returned by team actions when the team panel is not enabled.
	ErrNotManager = errors.New("team panel not enabled for this user")
)

const (
	msgSignIn  = "Sign in first."
	msgExpired = "Your session has expired. Sign in again."
)

// refreshMargin treats tokens this close to expiry as already expired.
const refreshMargin = 30 * time.Second

// Identity is the identity-provider surface the controller uses.
type Identity interface {
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Backend is the punch REST API surface the controller uses.
type Backend interface {
	MyPunches(ctx context.Context, token string) ([]models.Punch, error)
	Clock(ctx context.Context, token string, req dto.ClockRequest) (dto.ClockResponse, error)
	Me(ctx context.Context, token string) (models.Profile, error)
	Team(ctx context.Context, token string) ([]models.TeamMember, error)
	TeamPunches(ctx context.Context, token string, q dto.TeamPunchQuery) ([]models.Punch, error)
	UpdatePunch(ctx context.Context, token string, req dto.PunchUpdateRequest) error
	ApprovePunch(ctx context.Context, token string, req dto.PunchApprovalRequest) error
}

// Options tunes a Controller.
type Options struct {
	Location           *time.Location
	GeolocationTimeout time.Duration
}

// Controller runs the page's operations against one browser's State at a time.
type Controller struct {
	identity   Identity
	backend    Backend
	format     Formatter
	geoTimeout time.Duration
	submits    singleflight.Group
	now        func() time.Time
}

// NewController wires the controller to its collaborators.
func NewController(id Identity, be Backend, opts Options) *Controller {
	timeout := opts.GeolocationTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Controller{
		identity:   id,
		backend:    be,
		format:     NewFormatter(opts.Location),
		geoTimeout: timeout,
		now:        time.Now,
	}
}

// Formatter exposes the display formatter to templates.
func (c *Controller) Formatter() Formatter {
	return c.format
}

// RenderAuth is the auth gate run on page load and after sign-in or sign-out.
func (c *Controller) RenderAuth(ctx context.Context, st *State) {
	sess := c.currentSession(ctx, st)
	if sess == nil {
		showAnonymous(st)
		return
	}

	st.apply(func(s *State) {
		s.page.Layout = Layout{Logout: true, UserInfo: true, Punches: true, Map: true}
		s.page.UserLabel = sess.User.Label()
		if s.mapView == nil {
			s.mapView = newMapView()
		}
	})
	c.RefreshPunches(ctx, st)
	c.RefreshManager(ctx, st)
	if st.Session() == nil {
		showAnonymous(st)
	}
}

func showAnonymous(st *State) {
	st.apply(func(s *State) {
		s.page.Layout = Layout{Login: true}
		s.page.UserLabel = ""
		s.page.Punches = nil
		s.page.Team = TeamPanel{Filter: s.filter}
		s.memberID = ""
		s.canManage = false
	})
}

// SignIn verifies the credentials with the identity provider and re-runs the gate.
// The provider's message is shown verbatim on failure.
func (c *Controller) SignIn(ctx context.Context, st *State, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil
	}
	sess, err := c.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		st.notify(err.Error())
		return err
	}
	st.apply(func(s *State) { s.session = sess })
	c.RenderAuth(ctx, st)
	return nil
}

// SignOut drops the session and re-runs the gate.
func (c *Controller) SignOut(ctx context.Context, st *State) {
	var sess *identity.Session
	st.apply(func(s *State) {
		sess = s.session
		s.session = nil
	})
	if sess != nil {
		if err := c.identity.SignOut(ctx, sess.AccessToken); err != nil {
			log.Printf("view: provider sign-out: %v", err)
		}
	}
	c.RenderAuth(ctx, st)
}

// RefreshPunches reloads the own-punch list and rebuilds the map markers.
// Failures are logged and leave the list empty; a rejected token ends the session.
func (c *Controller) RefreshPunches(ctx context.Context, st *State) {
	sess := c.currentSession(ctx, st)
	if sess == nil {
		return
	}
	punches, err := c.backend.MyPunches(ctx, sess.AccessToken)
	if err != nil {
		log.Printf("view: load own punches: %v", err)
		if errors.Is(err, backend.ErrUnauthorized) {
			c.expire(st, sess)
		}
		punches = nil
	}

	items := make([]PunchItem, 0, len(punches))
	for _, p := range punches {
		items = append(items, PunchItem{
			ID:     p.ID,
			Type:   p.Type,
			When:   c.format.Time(p.OccurredAt),
			Coords: formatCoords(p),
		})
	}

	st.apply(func(s *State) {
		s.page.Punches = items
		if s.mapView != nil {
			s.mapView.rebuild(punches, c.format)
		}
	})
}

// Punch submits one punch of the given type. Location comes from loc with a bounded
// wait and is optional. Identical submissions from the same browser that overlap in
// time share a single request.
func (c *Controller) Punch(ctx context.Context, st *State, punchType string, loc geo.Locator) error {
	sess := c.currentSession(ctx, st)
	if sess == nil {
		st.notify(msgSignIn)
		return ErrNoSession
	}

	key := st.ID() + "\x00" + punchType
	_, err, _ := c.submits.Do(key, func() (any, error) {
		req := dto.ClockRequest{Type: punchType}
		if pos := geo.Acquire(ctx, loc, c.geoTimeout); pos != nil {
			lat, lon := pos.Latitude, pos.Longitude
			req.Lat, req.Lon, req.Accuracy = &lat, &lon, pos.Accuracy
		}
		if _, err := c.backend.Clock(ctx, sess.AccessToken, req); err != nil {
			return nil, err
		}
		c.RefreshPunches(ctx, st)
		return nil, nil
	})
	if err != nil {
		return c.writeFailed(st, sess, err, "Failed to register punch.")
	}
	return nil
}

// writeFailed reports a failed write. A rejected token ends the session and the
// error then matches ErrNoSession.
func (c *Controller) writeFailed(st *State, sess *identity.Session, err error, fallback string) error {
	if errors.Is(err, backend.ErrUnauthorized) {
		c.expire(st, sess)
		st.notify(msgExpired)
		return fmt.Errorf("%w: %w", ErrNoSession, err)
	}
	st.notify(backend.DetailOr(err, fallback))
	return err
}

// expire drops sess if it is still the state's current session.
func (c *Controller) expire(st *State, sess *identity.Session) {
	st.apply(func(s *State) {
		if s.session != sess {
			return
		}
		s.session = nil
		s.canManage = false
	})
	log.Printf("view: backend rejected the session of %s", st.ID())
}

// currentSession returns a usable session, refreshing an expired one once.
func (c *Controller) currentSession(ctx context.Context, st *State) *identity.Session {
	sess := st.Session()
	if sess == nil || !sess.ExpiresWithin(c.now(), refreshMargin) {
		return sess
	}

	fresh, err := c.identity.Refresh(ctx, sess.RefreshToken)
	st.apply(func(s *State) {
		if s.session != sess {
			return
		}
		if err != nil {
			s.session = nil
			s.canManage = false
			return
		}
		s.session = fresh
	})
	if err != nil {
		log.Printf("view: session refresh: %v", err)
		return nil
	}
	return fresh
}

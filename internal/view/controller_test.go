package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/punchclock/internal/backend"
	"github.com/hongminglow/punchclock/internal/geo"
	"github.com/hongminglow/punchclock/internal/identity"
	"github.com/hongminglow/punchclock/internal/models"
)

var base = time.Date(2024, 1, 15, 13, 30, 0, 0, time.UTC)

func newTestController(t *testing.T, id *fakeIdentity, be *fakeBackend) *Controller {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return NewController(id, be, Options{Location: loc, GeolocationTimeout: 50 * time.Millisecond})
}

func signedIn(email string) *State {
	st := NewState("browser-1")
	st.session = &identity.Session{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        identity.User{ID: "u-self", Email: email},
	}
	return st
}

func TestRenderAuthWithoutSessionHidesEverything(t *testing.T) {
	be := &fakeBackend{}
	c := newTestController(t, &fakeIdentity{}, be)
	st := NewState("browser-1")

	c.RenderAuth(t.Context(), st)

	page := st.Snapshot()
	assert.Equal(t, Layout{Login: true}, page.Layout)
	assert.Empty(t, page.Punches)
	assert.Nil(t, page.Map)
	assert.Empty(t, be.calls)
}

func TestEmployeeSeesOwnPanelButNoTeam(t *testing.T) {
	be := &fakeBackend{
		profile: models.Profile{ID: "u-self", Role: models.RoleEmployee},
		myPunches: []models.Punch{
			punchAt("2", models.PunchOut, base.Add(8*time.Hour)),
			punchAt("1", models.PunchIn, base, -23.5, -46.6),
		},
	}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("ana@example.com")

	c.RenderAuth(t.Context(), st)

	page := st.Snapshot()
	assert.Equal(t, Layout{Logout: true, UserInfo: true, Punches: true, Map: true}, page.Layout)
	assert.Equal(t, "ana@example.com", page.UserLabel)
	require.Len(t, page.Punches, 2)
	assert.Equal(t, models.PunchID("2"), page.Punches[0].ID)
	assert.Equal(t, "15/01/2024, 18:30:00", page.Punches[0].When)
	assert.Equal(t, "", page.Punches[0].Coords)
	assert.Equal(t, "15/01/2024, 10:30:00", page.Punches[1].When)
	assert.Equal(t, "(-23.5, -46.6)", page.Punches[1].Coords)

	assert.Zero(t, be.count("team"))
	assert.Zero(t, be.count("team-punches"))
	assert.Equal(t, 1, be.count("me"))
	for _, tok := range be.tokens {
		assert.Equal(t, "tok", tok)
	}
}

func TestNonManagerRolesNeverLoadTeam(t *testing.T) {
	for _, role := range []string{"employee", "", "supervisor", "ADMIN"} {
		be := &fakeBackend{profile: models.Profile{Role: role}}
		c := newTestController(t, &fakeIdentity{}, be)
		st := signedIn("x@example.com")

		c.RenderAuth(t.Context(), st)

		assert.False(t, st.Snapshot().Layout.Team, role)
		assert.Zero(t, be.count("team"), role)
	}
}

func TestProfileFailureHidesTeam(t *testing.T) {
	be := &fakeBackend{meErr: errors.New("boom")}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("x@example.com")

	c.RenderAuth(t.Context(), st)

	assert.False(t, st.Snapshot().Layout.Team)
	assert.Zero(t, be.count("team"))
}

func TestRefreshKeepsOrderAndCount(t *testing.T) {
	var punches []models.Punch
	for i := 0; i < 25; i++ {
		punches = append(punches, punchAt(string(rune('a'+i)), models.PunchIn, base.Add(-time.Duration(i)*time.Hour)))
	}
	be := &fakeBackend{myPunches: punches}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("x@example.com")

	for round := 0; round < 2; round++ {
		c.RefreshPunches(t.Context(), st)
		page := st.Snapshot()
		require.Len(t, page.Punches, len(punches))
		for i, item := range page.Punches {
			assert.Equal(t, punches[i].ID, item.ID)
		}
	}
}

func TestMarkersCappedAndGeotaggedOnly(t *testing.T) {
	var punches []models.Punch
	for i := 0; i < 30; i++ {
		if i%3 == 0 {
			punches = append(punches, punchAt("plain", models.PunchOut, base))
			continue
		}
		punches = append(punches, punchAt("geo", models.PunchIn, base, float64(-i), float64(i)))
	}
	be := &fakeBackend{profile: models.Profile{Role: models.RoleEmployee}, myPunches: punches}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("x@example.com")

	c.RenderAuth(t.Context(), st)

	m := st.Snapshot().Map
	require.NotNil(t, m)
	assert.Len(t, m.Markers, MaxMarkers)
	assert.Equal(t, LatLng{Lat: -1, Lng: 1}, m.Center)
	assert.Equal(t, focusZoom, m.Zoom)
	assert.Contains(t, m.Markers[0].Popup, "in — 15/01/2024, 10:30:00")
}

func TestMarkersRebuiltEvenWhenListEmpties(t *testing.T) {
	be := &fakeBackend{myPunches: []models.Punch{punchAt("1", "in", base, 1, 2)}}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("x@example.com")
	c.RenderAuth(t.Context(), st)
	require.Len(t, st.Snapshot().Map.Markers, 1)

	be.myPunches = nil
	c.RefreshPunches(t.Context(), st)

	m := st.Snapshot().Map
	assert.Empty(t, m.Markers)
	assert.Equal(t, LatLng{Lat: 1, Lng: 2}, m.Center)
}

func TestMapInitializedOnce(t *testing.T) {
	be := &fakeBackend{}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("x@example.com")

	c.RenderAuth(t.Context(), st)
	first := st.mapView
	c.RenderAuth(t.Context(), st)
	assert.Same(t, first, st.mapView)
	assert.Equal(t, DefaultCenter, st.mapView.Center)
}

func TestReadFailureLeavesPanelEmptyWithoutNotice(t *testing.T) {
	be := &fakeBackend{myPunches: []models.Punch{punchAt("1", "in", base)}}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("x@example.com")
	c.RefreshPunches(t.Context(), st)
	require.Len(t, st.Snapshot().Punches, 1)

	be.myErr = errors.New("connection refused")
	c.RefreshPunches(t.Context(), st)

	page := st.Snapshot()
	assert.Empty(t, page.Punches)
	assert.Empty(t, page.Notice)
}

func TestSignInFailureShowsProviderMessage(t *testing.T) {
	id := &fakeIdentity{signInErr: &identity.ProviderError{StatusCode: 400, Message: "Invalid login credentials"}}
	be := &fakeBackend{}
	c := newTestController(t, id, be)
	st := NewState("b")

	err := c.SignIn(t.Context(), st, "ana@example.com", "nope")

	require.Error(t, err)
	assert.Equal(t, "Invalid login credentials", st.TakeNotice())
	assert.Nil(t, st.Session())
	assert.Empty(t, be.calls)
}

func TestSignInWithEmptyFieldsIsNoop(t *testing.T) {
	be := &fakeBackend{}
	c := newTestController(t, &fakeIdentity{}, be)
	st := NewState("b")

	require.NoError(t, c.SignIn(t.Context(), st, "  ", "pw"))
	require.NoError(t, c.SignIn(t.Context(), st, "a@example.com", ""))
	assert.Nil(t, st.Session())
	assert.Empty(t, be.calls)
}

func TestSignInThenSignOut(t *testing.T) {
	id := &fakeIdentity{}
	be := &fakeBackend{profile: models.Profile{Role: models.RoleEmployee}, myPunches: []models.Punch{punchAt("1", "in", base)}}
	c := newTestController(t, id, be)
	st := NewState("b")

	require.NoError(t, c.SignIn(t.Context(), st, "ana@example.com", "pw"))
	page := st.Snapshot()
	assert.True(t, page.Layout.Punches)
	assert.Equal(t, "ana@example.com", page.UserLabel)
	assert.Len(t, page.Punches, 1)

	c.SignOut(t.Context(), st)
	page = st.Snapshot()
	assert.Equal(t, Layout{Login: true}, page.Layout)
	assert.Empty(t, page.Punches)
	assert.Equal(t, []string{"tok"}, id.signedOut)
}

func TestExpiredSessionIsRefreshedOnce(t *testing.T) {
	id := &fakeIdentity{}
	be := &fakeBackend{profile: models.Profile{Role: models.RoleEmployee}}
	c := newTestController(t, id, be)
	st := signedIn("x@example.com")
	st.session.ExpiresAt = time.Now().Add(-time.Minute)
	st.session.RefreshToken = "r"

	c.RenderAuth(t.Context(), st)

	assert.Equal(t, 1, id.refreshed)
	assert.Equal(t, "tok-refreshed", st.Session().AccessToken)
	assert.Equal(t, "tok-refreshed", be.tokens[0])
}

func TestExpiredSessionWithFailedRefreshSignsOut(t *testing.T) {
	id := &fakeIdentity{refreshErr: identity.ErrInvalidSession}
	be := &fakeBackend{}
	c := newTestController(t, id, be)
	st := signedIn("x@example.com")
	st.session.ExpiresAt = time.Now().Add(-time.Minute)

	c.RenderAuth(t.Context(), st)

	assert.Nil(t, st.Session())
	assert.Equal(t, Layout{Login: true}, st.Snapshot().Layout)
	assert.Empty(t, be.calls)
}

func TestPunchRequiresSession(t *testing.T) {
	be := &fakeBackend{}
	c := newTestController(t, &fakeIdentity{}, be)
	st := NewState("b")

	err := c.Punch(t.Context(), st, models.PunchIn, nil)

	require.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, "Sign in first.", st.TakeNotice())
	assert.Zero(t, be.count("clock"))
}

func TestPunchWithDeniedGeolocationStillSubmits(t *testing.T) {
	be := &fakeBackend{}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("x@example.com")
	denied := geo.LocatorFunc(func(context.Context) (geo.Position, error) {
		return geo.Position{}, geo.ErrDenied
	})

	require.NoError(t, c.Punch(t.Context(), st, models.PunchIn, denied))

	require.Len(t, be.clockReqs, 1)
	req := be.clockReqs[0]
	assert.Equal(t, models.PunchIn, req.Type)
	assert.Nil(t, req.Lat)
	assert.Nil(t, req.Lon)
	assert.Nil(t, req.Accuracy)
	assert.Equal(t, 1, be.count("my-punches"))
}

func TestPunchWithSlowGeolocationIsBounded(t *testing.T) {
	be := &fakeBackend{}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("x@example.com")
	slow := geo.LocatorFunc(func(ctx context.Context) (geo.Position, error) {
		<-ctx.Done()
		return geo.Position{}, ctx.Err()
	})

	require.NoError(t, c.Punch(t.Context(), st, models.PunchOut, slow))
	require.Len(t, be.clockReqs, 1)
	assert.Nil(t, be.clockReqs[0].Lat)
}

func TestPunchSendsPosition(t *testing.T) {
	be := &fakeBackend{}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("x@example.com")
	acc := 9.0
	here := geo.LocatorFunc(func(context.Context) (geo.Position, error) {
		return geo.Position{Latitude: -23.5, Longitude: -46.6, Accuracy: &acc}, nil
	})

	require.NoError(t, c.Punch(t.Context(), st, models.PunchBreakStart, here))
	req := be.clockReqs[0]
	require.NotNil(t, req.Lat)
	assert.Equal(t, -23.5, *req.Lat)
	assert.Equal(t, -46.6, *req.Lon)
	assert.Equal(t, 9.0, *req.Accuracy)
}

func TestPunchFailureSurfacesServerDetail(t *testing.T) {
	be := &fakeBackend{clockErr: &backend.APIError{StatusCode: 400, Detail: "type inválido"}}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("x@example.com")

	require.Error(t, c.Punch(t.Context(), st, "lunch", nil))
	assert.Equal(t, "type inválido", st.TakeNotice())
	assert.Zero(t, be.count("my-punches"))

	be.clockErr = errors.New("dial tcp: refused")
	require.Error(t, c.Punch(t.Context(), st, "in", nil))
	assert.Equal(t, "Failed to register punch.", st.TakeNotice())
}

func TestOverlappingIdenticalPunchesShareOneRequest(t *testing.T) {
	be := &fakeBackend{clockGate: make(chan struct{})}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("x@example.com")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Punch(context.Background(), st, models.PunchIn, nil)
	}()
	require.Eventually(t, func() bool { return be.count("clock") == 1 }, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Punch(context.Background(), st, models.PunchIn, nil)
	}()
	time.Sleep(50 * time.Millisecond)
	close(be.clockGate)
	wg.Wait()

	assert.Equal(t, 1, be.count("clock"))
}

func TestUnauthorizedOwnPunchesSignsOut(t *testing.T) {
	be := &fakeBackend{
		profile: models.Profile{Role: models.RoleManager},
		myErr:   &backend.APIError{StatusCode: 401},
	}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("x@example.com")

	c.RenderAuth(t.Context(), st)

	assert.Nil(t, st.Session())
	assert.False(t, st.CanManage())
	page := st.Snapshot()
	assert.Equal(t, Layout{Login: true}, page.Layout)
	assert.Empty(t, page.Punches)
	assert.Zero(t, be.count("team"))
}

func TestUnauthorizedPunchEndsSession(t *testing.T) {
	be := &fakeBackend{clockErr: &backend.APIError{StatusCode: 401, Detail: "expired"}}
	c := newTestController(t, &fakeIdentity{}, be)
	st := signedIn("x@example.com")

	err := c.Punch(t.Context(), st, models.PunchIn, nil)

	require.ErrorIs(t, err, ErrNoSession)
	assert.Nil(t, st.Session())
	assert.Equal(t, msgExpired, st.TakeNotice())
}

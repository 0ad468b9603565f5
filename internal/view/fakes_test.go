package view

import (
	"context"
	"sync"
	"time"

	"github.com/hongminglow/punchclock/internal/identity"
	"github.com/hongminglow/punchclock/internal/models"
	"github.com/hongminglow/punchclock/internal/models/dto"
)

type fakeIdentity struct {
	mu         sync.Mutex
	session    *identity.Session
	signInErr  error
	refreshErr error
	refreshed  int
	signedOut  []string
}

func (f *fakeIdentity) SignInWithPassword(_ context.Context, email, _ string) (*identity.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	if f.session != nil {
		return f.session, nil
	}
	return &identity.Session{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        identity.User{ID: "u-self", Email: email},
	}, nil
}

func (f *fakeIdentity) Refresh(context.Context, string) (*identity.Session, error) {
	f.mu.Lock()
	f.refreshed++
	f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &identity.Session{AccessToken: "tok-refreshed", ExpiresAt: time.Now().Add(time.Hour), User: identity.User{ID: "u-self"}}, nil
}

func (f *fakeIdentity) SignOut(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedOut = append(f.signedOut, token)
	return nil
}

type fakeBackend struct {
	mu sync.Mutex

	calls          []string
	tokens         []string
	myPunches      []models.Punch
	myErr          error
	profile        models.Profile
	meErr          error
	team           []models.TeamMember
	teamErr        error
	teamPunches    map[string][]models.Punch
	teamQueries    []dto.TeamPunchQuery
	teamPunchesErr error
	clockReqs      []dto.ClockRequest
	clockErr       error
	clockGate      chan struct{}
	updates        []dto.PunchUpdateRequest
	updateErr      error
	approvals      []dto.PunchApprovalRequest
	approveErr     error
}

func (f *fakeBackend) record(call, token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.tokens = append(f.tokens, token)
}

func (f *fakeBackend) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) MyPunches(_ context.Context, token string) ([]models.Punch, error) {
	f.record("my-punches", token)
	return f.myPunches, f.myErr
}

func (f *fakeBackend) Clock(_ context.Context, token string, req dto.ClockRequest) (dto.ClockResponse, error) {
	f.record("clock", token)
	if f.clockGate != nil {
		<-f.clockGate
	}
	f.mu.Lock()
	f.clockReqs = append(f.clockReqs, req)
	f.mu.Unlock()
	if f.clockErr != nil {
		return dto.ClockResponse{}, f.clockErr
	}
	return dto.ClockResponse{OK: true}, nil
}

func (f *fakeBackend) Me(_ context.Context, token string) (models.Profile, error) {
	f.record("me", token)
	return f.profile, f.meErr
}

func (f *fakeBackend) Team(_ context.Context, token string) ([]models.TeamMember, error) {
	f.record("team", token)
	return f.team, f.teamErr
}

func (f *fakeBackend) TeamPunches(_ context.Context, token string, q dto.TeamPunchQuery) ([]models.Punch, error) {
	f.record("team-punches", token)
	f.mu.Lock()
	f.teamQueries = append(f.teamQueries, q)
	f.mu.Unlock()
	if f.teamPunchesErr != nil {
		return nil, f.teamPunchesErr
	}
	return f.teamPunches[q.UserID], nil
}

func (f *fakeBackend) UpdatePunch(_ context.Context, token string, req dto.PunchUpdateRequest) error {
	f.record("punch-update", token)
	f.updates = append(f.updates, req)
	return f.updateErr
}

func (f *fakeBackend) ApprovePunch(_ context.Context, token string, req dto.PunchApprovalRequest) error {
	f.record("punch-approve", token)
	f.approvals = append(f.approvals, req)
	return f.approveErr
}

func fptr(v float64) *float64 { return &v }

func punchAt(id, typ string, at time.Time, coords ...float64) models.Punch {
	p := models.Punch{ID: models.PunchID(id), Type: typ, OccurredAt: at}
	if len(coords) == 2 {
		p.Latitude, p.Longitude = fptr(coords[0]), fptr(coords[1])
	}
	return p
}

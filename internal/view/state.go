package view

import (
	"sync"
	"time"

	"github.com/hongminglow/punchclock/internal/identity"
	"github.com/hongminglow/punchclock/internal/models"
)

// Layout says which page regions are visible.
type Layout struct {
	Login    bool
	Logout   bool
	UserInfo bool
	Punches  bool
	Map      bool
	Team     bool
}

// PunchItem is one line of the own-punch list.
type PunchItem struct {
	ID     models.PunchID
	Type   string
	When   string
	Coords string
}

// MemberOption is one entry of the team selector and the static roster.
type MemberOption struct {
	ID       string
	Label    string
	Summary  string
	Selected bool
}

// TeamPunchItem is one line of the team punch list. MemberID is the member the list
// was loaded for; actions bound to the item use it, not the current selection.
type TeamPunchItem struct {
	ID       models.PunchID
	MemberID string
	Type     string
	When     string
	Coords   string
	Note     string
	Status   models.ApprovalStatus
	Pending  bool
}

// StatusClass maps the status to the badge style.
func (i TeamPunchItem) StatusClass() string {
	switch i.Status {
	case models.StatusApproved:
		return "badge-approved"
	case models.StatusRejected:
		return "badge-rejected"
	default:
		return "badge-pending"
	}
}

// TeamPanel is the manager region.
type TeamPanel struct {
	Members    []MemberOption
	SelectedID string
	Filter     Filter
	Punches    []TeamPunchItem
	Message    string
	IsError    bool
}

// Page is everything the templates render for one browser.
type Page struct {
	Layout    Layout
	UserLabel string
	Punches   []PunchItem
	Map       *MapView
	Team      TeamPanel
	Notice    string
}

// State is the per-browser view context: session handle, map, selection and the
// rendered regions. Every controller operation receives it explicitly.
type State struct {
	id string

	mu       sync.Mutex
	session  *identity.Session
	page     Page
	mapView  *MapView
	memberID string
	filter   Filter
	touched  time.Time

	// canManage is set once the profile role allows the team panel.
	canManage bool
}

// NewState creates an anonymous state for the browser identified by id.
func NewState(id string) *State {
	return &State{id: id, page: Page{Layout: Layout{Login: true}}, touched: time.Now()}
}

// ID returns the browser id the state is bound to.
func (s *State) ID() string {
	return s.id
}

// Session returns the current session handle, or nil.
func (s *State) Session() *identity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Touch records activity; the store uses it for idle expiry.
func (s *State) Touch(now time.Time) {
	s.mu.Lock()
	s.touched = now
	s.mu.Unlock()
}

// LastTouched returns the time of the last recorded activity.
func (s *State) LastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Snapshot returns a copy of the rendered regions safe to hand to templates.
func (s *State) Snapshot() Page {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.page
	p.Punches = append([]PunchItem(nil), s.page.Punches...)
	p.Team.Members = append([]MemberOption(nil), s.page.Team.Members...)
	p.Team.Punches = append([]TeamPunchItem(nil), s.page.Team.Punches...)
	if s.mapView != nil {
		m := s.mapView.clone()
		p.Map = &m
	}
	return p
}

// CanManage reports whether the team panel is enabled for the signed-in user.
func (s *State) CanManage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canManage
}

// TakeNotice returns the pending notice and clears it.
func (s *State) TakeNotice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.page.Notice
	s.page.Notice = ""
	return n
}

// apply runs fn with the state locked. Network calls never happen inside fn.
func (s *State) apply(fn func(s *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *State) notify(msg string) {
	s.apply(func(s *State) { s.page.Notice = msg })
}

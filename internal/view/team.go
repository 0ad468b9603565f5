package view

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/hongminglow/punchclock/internal/backend"
	"github.com/hongminglow/punchclock/internal/identity"
	"github.com/hongminglow/punchclock/internal/models"
	"github.com/hongminglow/punchclock/internal/models/dto"
)

// TeamPunchLimit is the page size requested for a member's punches.
const TeamPunchLimit = 50

const (
	msgNoMembers    = "No team members found."
	msgNoRecords    = "No records."
	msgLoadFailed   = "Failed to load punches."
	msgLoading      = "Loading..."
	actionApprove   = "approve"
	actionReject    = "reject"
	fallbackNote    = "Failed to update note."
	fallbackApprove = "Failed to approve/reject punch."
)

// RefreshManager shows the team panel for managers and admins and loads the roster.
// Any other role, or any failure, keeps the panel hidden with no further team calls.
func (c *Controller) RefreshManager(ctx context.Context, st *State) {
	sess := c.currentSession(ctx, st)
	if sess == nil {
		return
	}
	hide := func(err error) {
		if errors.Is(err, backend.ErrUnauthorized) {
			c.expire(st, sess)
		}
		st.apply(func(s *State) {
			s.canManage = false
			s.page.Layout.Team = false
			s.page.Team.Members = nil
			s.page.Team.Punches = nil
			s.memberID = ""
		})
	}

	me, err := c.backend.Me(ctx, sess.AccessToken)
	if err != nil {
		log.Printf("view: load profile: %v", err)
		hide(err)
		return
	}
	if !models.CanManageTeam(me.Role) {
		hide(nil)
		return
	}
	st.apply(func(s *State) {
		s.canManage = true
		s.page.Layout.Team = true
	})

	team, err := c.backend.Team(ctx, sess.AccessToken)
	if err != nil {
		log.Printf("view: load team: %v", err)
		hide(err)
		return
	}

	var first string
	if len(team) > 0 {
		first = team[0].ID
	}
	st.apply(func(s *State) {
		s.memberID = first
		s.page.Team.SelectedID = first
		s.page.Team.Members = memberOptions(team, first)
		s.page.Team.Filter = s.filter
		if first == "" {
			s.page.Team.Punches = nil
			s.page.Team.Message = msgNoMembers
			s.page.Team.IsError = false
		}
	})
	if first != "" {
		_ = c.loadTeamPunches(ctx, st, sess, first)
	}
}

// teamSession returns the session for a team action. Without one the user is told
// to sign in; without the team panel nothing is sent at all.
func (c *Controller) teamSession(ctx context.Context, st *State) (*identity.Session, error) {
	sess := c.currentSession(ctx, st)
	if sess == nil {
		st.notify(msgSignIn)
		return nil, ErrNoSession
	}
	if !st.CanManage() {
		return nil, ErrNotManager
	}
	return sess, nil
}

// SelectMember switches the team list to another member.
func (c *Controller) SelectMember(ctx context.Context, st *State, memberID string) error {
	sess, err := c.teamSession(ctx, st)
	if err != nil {
		return err
	}
	memberID = strings.TrimSpace(memberID)
	st.apply(func(s *State) {
		s.memberID = memberID
		s.page.Team.SelectedID = memberID
		for i := range s.page.Team.Members {
			s.page.Team.Members[i].Selected = s.page.Team.Members[i].ID == memberID
		}
	})
	return c.loadTeamPunches(ctx, st, sess, memberID)
}

// ApplyFilter stores the date-range inputs and reloads the selected member.
func (c *Controller) ApplyFilter(ctx context.Context, st *State, f Filter) error {
	sess, err := c.teamSession(ctx, st)
	if err != nil {
		return err
	}
	var member string
	st.apply(func(s *State) {
		s.filter = f
		s.page.Team.Filter = f
		member = s.memberID
	})
	return c.loadTeamPunches(ctx, st, sess, member)
}

// LoadTeamPunches fetches and renders one member's punches. The filter is read at
// call time; empty bounds are left out of the query.
func (c *Controller) LoadTeamPunches(ctx context.Context, st *State, memberID string) error {
	sess, err := c.teamSession(ctx, st)
	if err != nil {
		return err
	}
	return c.loadTeamPunches(ctx, st, sess, memberID)
}

// loadTeamPunches shows read failures in the panel and returns nil for them. Only a
// rejected token is returned, as ErrNoSession.
func (c *Controller) loadTeamPunches(ctx context.Context, st *State, sess *identity.Session, memberID string) error {
	var f Filter
	st.apply(func(s *State) {
		f = s.filter
		s.page.Team.Punches = nil
		s.page.Team.Message = msgLoading
		s.page.Team.IsError = false
	})

	punches, err := c.fetchTeamPunches(ctx, sess.AccessToken, memberID, f)
	if err != nil {
		log.Printf("view: load team punches for %s: %v", memberID, err)
		st.apply(func(s *State) {
			s.page.Team.Punches = nil
			s.page.Team.Message = msgLoadFailed
			s.page.Team.IsError = true
		})
		if errors.Is(err, backend.ErrUnauthorized) {
			c.expire(st, sess)
			st.notify(msgExpired)
			return fmt.Errorf("%w: %w", ErrNoSession, err)
		}
		return nil
	}

	items := make([]TeamPunchItem, 0, len(punches))
	for _, p := range punches {
		status := p.ApprovalStatus
		if status == "" {
			status = models.StatusPending
		}
		items = append(items, TeamPunchItem{
			ID:       p.ID,
			MemberID: memberID,
			Type:     p.Type,
			When:     c.format.Time(p.OccurredAt),
			Coords:   formatCoords(p),
			Note:     p.Note,
			Status:   status,
			Pending:  p.ApprovalStatus == models.StatusPending,
		})
	}

	st.apply(func(s *State) {
		s.page.Team.Punches = items
		s.page.Team.IsError = false
		s.page.Team.Message = ""
		if len(items) == 0 {
			s.page.Team.Message = msgNoRecords
		}
	})
	return nil
}

func (c *Controller) fetchTeamPunches(ctx context.Context, token, memberID string, f Filter) ([]models.Punch, error) {
	start, end, err := f.bounds(c.format.Location())
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return c.backend.TeamPunches(ctx, token, dto.TeamPunchQuery{
		UserID: memberID,
		Limit:  TeamPunchLimit,
		Start:  start,
		End:    end,
	})
}

// EditNote replaces a punch note; empty text clears it. On success the list for
// memberID is reloaded. On failure the server message is shown and nothing reloads.
func (c *Controller) EditNote(ctx context.Context, st *State, memberID string, id models.PunchID, text string) error {
	sess, err := c.teamSession(ctx, st)
	if err != nil {
		return err
	}

	req := dto.PunchUpdateRequest{ID: id}
	if text != "" {
		req.Note = &text
	}
	if err := c.backend.UpdatePunch(ctx, sess.AccessToken, req); err != nil {
		return c.writeFailed(st, sess, err, fallbackNote)
	}
	return c.loadTeamPunches(ctx, st, sess, memberID)
}

// Decide sends an approve or reject decision. Unknown actions send nothing but still
// reload the list, like every other outcome except a failed request.
func (c *Controller) Decide(ctx context.Context, st *State, memberID string, id models.PunchID, action string) error {
	sess, err := c.teamSession(ctx, st)
	if err != nil {
		return err
	}

	var decision models.ApprovalStatus
	switch action {
	case actionApprove:
		decision = models.StatusApproved
	case actionReject:
		decision = models.StatusRejected
	}
	if decision != "" {
		req := dto.PunchApprovalRequest{ID: id, Decision: decision}
		if err := c.backend.ApprovePunch(ctx, sess.AccessToken, req); err != nil {
			return c.writeFailed(st, sess, err, fallbackApprove)
		}
	}
	return c.loadTeamPunches(ctx, st, sess, memberID)
}

func memberOptions(team []models.TeamMember, selected string) []MemberOption {
	out := make([]MemberOption, 0, len(team))
	for _, m := range team {
		name := m.DisplayName()
		out = append(out, MemberOption{
			ID:       m.ID,
			Label:    fmt.Sprintf("%s (%s)", name, m.Role),
			Summary:  fmt.Sprintf("• %s — %s", name, m.Role),
			Selected: m.ID == selected,
		})
	}
	return out
}

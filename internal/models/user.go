package models

// Profile is the caller's own profile as returned by /api/me.
type Profile struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	ManagerID string `json:"manager_id"`
}

// TeamMember is a read-only projection used to populate the team selector.
type TeamMember struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	ManagerID string `json:"manager_id"`
}

// DisplayName falls back to the id when the member has no name on file.
func (m TeamMember) DisplayName() string {
	if m.FullName != "" {
		return m.FullName
	}
	return m.ID
}

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Punch types accepted by /api/clock.
const (
	PunchIn         = "in"
	PunchOut        = "out"
	PunchBreakStart = "break_start"
	PunchBreakEnd   = "break_end"
)

// PunchTypes lists the punch buttons in display order.
var PunchTypes = []string{PunchIn, PunchOut, PunchBreakStart, PunchBreakEnd}

// ApprovalStatus is the manager decision attached to a punch.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// PunchID accepts both JSON strings and numbers; the backend table decides which.
type PunchID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *PunchID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = PunchID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("punch id: %w", err)
	}
	*id = PunchID(n.String())
	return nil
}

// Punch is a single clock event owned by the backend.
type Punch struct {
	ID             PunchID        `json:"id"`
	UserID         string         `json:"user_id"`
	Type           string         `json:"p_type"`
	OccurredAt     time.Time      `json:"occurred_at"`
	Latitude       *float64       `json:"latitude"`
	Longitude      *float64       `json:"longitude"`
	Accuracy       *float64       `json:"accuracy"`
	Note           string         `json:"note"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
	Source         string         `json:"source"`
}

// Geotagged reports whether both coordinates are present.
func (p Punch) Geotagged() bool {
	return p.Latitude != nil && p.Longitude != nil
}

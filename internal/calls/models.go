package calls

import "time"

// Call is a phone call the agent is on right now. It lives only in memory; once it
// ends it is handed to the CRM as a call activity and forgotten.
type Call struct {
	ID          string     `json:"id"`
	PhoneNumber string     `json:"phoneNumber"`
	Direction   string     `json:"direction"`
	ContactID   string     `json:"contactId,omitempty"`
	Status      CallStatus `json:"status"`

	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`

	// DurationSeconds is whole seconds between start and end; zero while active.
	DurationSeconds int `json:"duration"`
}

type CallStatus string

const (
	CallStatusActive    CallStatus = "active"
	CallStatusCompleted CallStatus = "completed"
)

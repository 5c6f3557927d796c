package crm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"crm-bridge/internal/apperr"
)

// ContactInput is the body of a contact upsert. Keys match case-insensitively,
// so both firstName and firstname are accepted.
type ContactInput struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// Normalize trims every field and checks that the contact can be identified.
func (in ContactInput) Normalize() (ContactInput, error) {
	out := ContactInput{
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Phone:     strings.TrimSpace(in.Phone),
	}
	if out.Email == "" && out.Phone == "" {
		return ContactInput{}, apperr.Validation("Either email or phone is required")
	}
	if out.Email != "" && !looksLikeEmail(out.Email) {
		return ContactInput{}, apperr.Validation("Invalid email address")
	}
	return out, nil
}

// searchKey is the property used to find an existing record: email when present, else phone.
func (in ContactInput) searchKey() (property, value string) {
	if in.Email != "" {
		return "email", in.Email
	}
	return "phone", in.Phone
}

func looksLikeEmail(s string) bool {
	at := strings.LastIndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t")
}

// FlexibleID accepts a JSON string or number. Null and "" both mean absent.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FlexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number")
	}
	*id = FlexibleID(n.String())
	return nil
}

// CallInput is the body of a call log request. Duration is in seconds.
type CallInput struct {
	ContactID FlexibleID `json:"contactId"`
	Duration  *float64   `json:"duration"`
	Notes     string     `json:"notes"`
	Direction string     `json:"direction"`
	Outcome   string     `json:"outcome"`
}

// Call is a validated call activity ready to send upstream.
type Call struct {
	ContactID  string
	DurationMs int64
	Notes      string
	// Direction is INBOUND or OUTBOUND.
	Direction string
	Outcome   string
}

var directions = map[string]string{
	"inbound":  "INBOUND",
	"outbound": "OUTBOUND",
}

// maxDurationMs is the first millisecond count that no longer fits in an int64.
const maxDurationMs float64 = 1 << 63

func (in CallInput) Normalize() (Call, error) {
	if in.Duration == nil {
		return Call{}, apperr.Validation("duration is required")
	}
	if *in.Duration < 0 {
		return Call{}, apperr.Validation("duration must be a non-negative number of seconds")
	}
	ms := *in.Duration*1000 + 0.5
	if !(ms < maxDurationMs) {
		return Call{}, apperr.Validation("duration is too large")
	}
	dir, ok := directions[strings.ToLower(strings.TrimSpace(in.Direction))]
	if !ok {
		return Call{}, apperr.Validation("direction must be one of inbound, outbound")
	}
	return Call{
		ContactID:  strings.TrimSpace(string(in.ContactID)),
		DurationMs: int64(ms),
		Notes:      strings.TrimSpace(in.Notes),
		Direction:  dir,
		Outcome:    strings.TrimSpace(in.Outcome),
	}, nil
}

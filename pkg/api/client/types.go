package client

import (
	"encoding/json"
	"maps"

	"github.com/recruitment/portal/pkg/crypto"
)

// UserRecord is the account creation input. Extra carries any further
// profile fields; they are sent alongside the named ones untouched.
type UserRecord struct {
	Username       string
	Email          string
	PersonalNumber string
	Password       string
	FirstName      string
	LastName       string
	Extra          map[string]any
}

// WithHashedPassword returns a copy of u whose password is replaced by its
// SHA-256 hex digest. u is left untouched.
func (u UserRecord) WithHashedPassword() UserRecord {
	out := u
	out.Password = crypto.DigestPassword(u.Password)
	if u.Extra != nil {
		out.Extra = maps.Clone(u.Extra)
	}
	return out
}

// MarshalJSON flattens Extra into the record. Named fields take precedence.
func (u UserRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Extra)+6)
	maps.Copy(out, u.Extra)
	out["username"] = u.Username
	out["email"] = u.Email
	out["personalNumber"] = u.PersonalNumber
	out["password"] = u.Password
	out["firstName"] = u.FirstName
	out["lastName"] = u.LastName
	return json.Marshal(out)
}

// ApplicationRecord is an applicant's submission. Its shape belongs to the
// backend; the client only serialises it.
type ApplicationRecord map[string]any

// ApplicationListEntry is one row of the recruiter overview.
type ApplicationListEntry struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Status    string `json:"status"`
}

// ApplicationState is the decision recorded on an application.
type ApplicationState string

const (
	StateAccepted ApplicationState = "accepted"
	StateRejected ApplicationState = "rejected"
	StateWaiting  ApplicationState = "waiting"
)

// Job is an open position as listed by the backend.
type Job struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	// State is the backend's "state" field, passed through undecoded.
	State   any
	RoleID  int
	Session Session
}

// CreationResult mirrors the backend's account creation reply.
type CreationResult struct {
	Success        bool            `json:"success"`
	ExistingFields map[string]bool `json:"existingFields,omitempty"`
	// Raw is the reply exactly as received.
	Raw json.RawMessage `json:"-"`
}

// CreationOutcome composes account creation with the follow-up login. Login
// and LoginErr are only set when Created.Success is true.
type CreationOutcome struct {
	Created  CreationResult
	Login    *LoginResult
	LoginErr error
}

// parseCreation reads the members of an account creation reply it
// understands. existingFields may be an object of flags or a list of names;
// members of any other type are ignored and remain visible through Raw.
func parseCreation(fields map[string]json.RawMessage) CreationResult {
	var out CreationResult
	if raw, ok := fields["success"]; ok {
		_ = json.Unmarshal(raw, &out.Success)
	}
	raw, ok := fields["existingFields"]
	if !ok {
		return out
	}
	var flags map[string]bool
	if err := json.Unmarshal(raw, &flags); err == nil {
		out.ExistingFields = flags
		return out
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil && len(names) > 0 {
		out.ExistingFields = make(map[string]bool, len(names))
		for _, name := range names {
			out.ExistingFields[name] = true
		}
	}
	return out
}

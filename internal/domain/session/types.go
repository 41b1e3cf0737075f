// Package session holds the client-side authentication session: its states,
// the user record, the token store port and the failure taxonomy.
package session

// State is the coarse state of the session state machine.
type State string

const (
	// StateAnonymous means no usable token is held.
	StateAnonymous State = "anonymous"
	// StateLoading means an auth-affecting operation is in flight.
	StateLoading State = "loading"
	// StateAuthenticated means a token is held and the user has been loaded.
	StateAuthenticated State = "authenticated"
	// StateError means the last login or register attempt failed.
	StateError State = "error"
)

// User is the identity record returned by the backend.
// It is stored as received and never mutated beyond profile updates.
type User struct {
	ID        string `json:"_id" yaml:"id"`
	FirstName string `json:"firstName" yaml:"first_name"`
	LastName  string `json:"lastName" yaml:"last_name"`
	Email     string `json:"email" yaml:"email"`
	Country   string `json:"country,omitempty" yaml:"country,omitempty"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	// Timestamps are kept as sent; backends disagree on their format.
	CreatedAt string `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

// DisplayName returns the name to show for the user.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Snapshot is a point-in-time copy of the session.
// Token is held for the owner of the snapshot and is never serialized.
type Snapshot struct {
	State           State  `json:"state" yaml:"state"`
	User            *User  `json:"user,omitempty" yaml:"user,omitempty"`
	Token           string `json:"-" yaml:"-"`
	IsAuthenticated bool   `json:"isAuthenticated" yaml:"is_authenticated"`
	IsLoading       bool   `json:"isLoading" yaml:"is_loading"`
	Error           string `json:"error,omitempty" yaml:"error,omitempty"`
	// Redirect is the login location recorded when the session expired
	// underneath a request. Empty when no redirect is pending.
	Redirect string `json:"redirect,omitempty" yaml:"redirect,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

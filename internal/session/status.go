package session

import (
	"AdDeck/pkg/adsapi"
)

// Status is the resolution state of the session
type Status string

const (
	// StatusPending means the initial status query has not settled yet
	StatusPending   Status = "pending"
	StatusLoggedIn  Status = "logged_in"
	StatusLoggedOut Status = "logged_out"
)

// IdentitySource tags where the user identity of an AuthStatus came
// from, so callers can tell a live session from a degraded-network one
type IdentitySource int

const (
	IdentityNone IdentitySource = iota
	// IdentityFresh means the identity was returned by the backend just now
	IdentityFresh
	// IdentityCached means the backend was unreachable and the identity
	// is the last-known snapshot from the local store
	IdentityCached
)

// MarshalJSON implements the json.Marshaler interface for IdentitySource
func (s IdentitySource) MarshalJSON() ([]byte, error) {
	switch s {
	case IdentityFresh:
		return []byte(`"fresh"`), nil
	case IdentityCached:
		return []byte(`"cached"`), nil
	default:
		return []byte(`"none"`), nil
	}
}

// AuthStatus is the answer to "am I logged in"
// TokenExpired is one-shot: it is set only on the transition into
// logged_out caused by an authoritative expiry, and never persisted
type AuthStatus struct {
	Status       Status           `json:"status"`
	IsLoggedIn   bool             `json:"is_logged_in"`
	TokenExpired bool             `json:"tokenExpired"`
	User         *adsapi.UserInfo `json:"user_info,omitempty"`
	Identity     IdentitySource   `json:"identity"`
}

func loggedIn(user adsapi.UserInfo, source IdentitySource) AuthStatus {
	return AuthStatus{
		Status:     StatusLoggedIn,
		IsLoggedIn: true,
		User:       &user,
		Identity:   source,
	}
}

func loggedOut(tokenExpired bool) AuthStatus {
	return AuthStatus{
		Status:       StatusLoggedOut,
		TokenExpired: tokenExpired,
	}
}

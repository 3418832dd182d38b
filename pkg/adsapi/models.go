package adsapi

import (
	"strconv"
	"strings"
	"time"
)

// UserInfo represents the authenticated user as returned by the backend
// Endpoints: /api/auth/login, /api/auth/register, /api/auth/status
type UserInfo struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ImageURL  string    `json:"image_url,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt TimeStamp `json:"created_at,omitempty"`
	UpdatedAt TimeStamp `json:"updated_at,omitempty"`
	LastLogin TimeStamp `json:"last_login,omitempty"`
}

// AuthToken represents a session token together with its server-side expiry
type AuthToken struct {
	Token     string
	ExpiresAt time.Time
}

// AuthResult represents the outcome of a successful login or registration
type AuthResult struct {
	AuthToken
	User UserInfo
}

// AuthorizationURL represents the backend-issued Instagram authorization
// URL and the CSRF state generated for it
// Endpoint: /api/instagram/auth/url
type AuthorizationURL struct {
	URL   string `json:"auth_url"`
	State string `json:"state"`
}

// ConnectParams are the one-time parameters carried by a successful
// Instagram redirect, submitted to establish the connection record
// Endpoint: /api/instagram/connect
type ConnectParams struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"instagram_user_id"`
	Username    string `json:"instagram_username"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ConnectionStatus represents the client-visible projection of the
// Instagram connection record
// Endpoint: /api/instagram/status
// Connected with Valid=false means the stored Instagram credential has
// itself expired and the connection must be re-established
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Valid     bool   `json:"valid"`
	Username  string `json:"username,omitempty"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type authResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt TimeStamp `json:"expires_at"`
	UserInfo  UserInfo  `json:"user_info"`
}

type refreshResponse struct {
	Status    string    `json:"status"`
	Token     string    `json:"token"`
	ExpiresAt TimeStamp `json:"expires_at"`
}

type statusResponse struct {
	Status     string   `json:"status"`
	IsLoggedIn bool     `json:"is_logged_in"`
	UserInfo   UserInfo `json:"user_info"`
}

// TimeStamp represents the ISO-8601 time&date strings in API response JSONs
// the backend emits them without a zone designator, in UTC
type TimeStamp struct {
	time.Time
}

// layouts the backend is known to emit, with and without sub-second precision
var timeStampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// UnmarshalJSON implements the json.Unmarshaler interface for TimeStamp
func (t *TimeStamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), "\"")
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}

	if n, e := strconv.ParseInt(s, 10, 64); e == nil { // unix form written by older agents
		t.Time = time.Unix(n, 0).UTC()
		return nil
	}

	var err error
	for _, layout := range timeStampLayouts {
		t.Time, err = time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return nil
		}
	}
	return err
}

// MarshalJSON implements the json.Marshaler interface for TimeStamp
// the emitted form must survive a round-trip through the local store
func (t TimeStamp) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte("null"), nil
	}
	return []byte("\"" + t.Time.UTC().Format(timeStampLayouts[0]) + "\""), nil
}

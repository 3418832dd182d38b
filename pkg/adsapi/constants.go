package adsapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// endpoint paths
const (
	registerPath = "/api/auth/register"
	loginPath    = "/api/auth/login"
	refreshPath  = "/api/auth/refresh"
	statusPath   = "/api/auth/status"
	logoutPath   = "/api/auth/logout"

	authURLPath          = "/api/instagram/auth/url"
	connectPath          = "/api/instagram/connect"
	connectionStatusPath = "/api/instagram/status"
	disconnectPath       = "/api/instagram/disconnect"
)

// DefaultConnectionExpiry is the fallback lifetime (in seconds) of a
// long-lived Instagram access token: 60 days
const DefaultConnectionExpiry int64 = 5184000

const requestTimeout = 15 * time.Second

// ErrTokenExpired reports that the backend rejected the session token
// with a 401; it is the only signal that warrants clearing local state
var ErrTokenExpired = errors.New("adsapi: token expired")

// CredentialError represents a login or registration rejected by the
// server; Message carries the server-supplied reason verbatim
type CredentialError struct {
	Op      string
	Message string
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("adsapi: %s rejected: %s", e.Op, e.Message)
}

// ServerError represents a non-401 error response from the backend
type ServerError struct {
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("adsapi: bad response (%d): %s", e.StatusCode, e.Detail)
}

// errorDetail extracts the `detail` field of an error response body,
// falling back to the raw body
func errorDetail(body []byte) string {
	var resp struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.Detail != "" {
		return resp.Detail
	}
	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}
	return "unknown error"
}

func wrapRequestError(err error) error {
	return fmt.Errorf("adsapi: error making request: %w", err)
}

func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

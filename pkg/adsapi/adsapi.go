/*
Package adsapi implements a client for the AdDeck backend HTTP API,
covering the auth endpoints (register, login, refresh, status, logout)
and the Instagram connect endpoints (auth URL, connect, status, disconnect).
*/
package adsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// Config represents a configuration for the AdDeck backend API client
type Config struct {
	BaseURL string `toml:"base_URL"`
}

// Client represents an AdDeck backend API client
// a single instance serves both anonymous (login, register) and
// bearer-authenticated requests; the session token is passed per call
// since its lifecycle is owned by the session manager
type Client struct {
	baseURL string
	http    *http.Client
}

// New initializes an AdDeck backend API client with the given configuration
func New(config Config) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// Register creates a new account and returns its first session
func (c *Client) Register(ctx context.Context, username, email, password string) (AuthResult, error) {
	body, code, err := c.request(ctx, c.http, http.MethodPost, c.baseURL+registerPath, registerRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return AuthResult{}, err
	}
	if code != http.StatusOK {
		if code >= http.StatusBadRequest && code < http.StatusInternalServerError {
			return AuthResult{}, &CredentialError{Op: "register", Message: errorDetail(body)}
		}
		return AuthResult{}, &ServerError{StatusCode: code, Detail: errorDetail(body)}
	}
	return parseAuthResult(body)
}

// Login authenticates with the given identifier (username or email) and password
func (c *Client) Login(ctx context.Context, identifier, password string) (AuthResult, error) {
	body, code, err := c.request(ctx, c.http, http.MethodPost, c.baseURL+loginPath, loginRequest{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		return AuthResult{}, err
	}
	if code != http.StatusOK {
		if code >= http.StatusBadRequest && code < http.StatusInternalServerError {
			return AuthResult{}, &CredentialError{Op: "login", Message: errorDetail(body)}
		}
		return AuthResult{}, &ServerError{StatusCode: code, Detail: errorDetail(body)}
	}
	return parseAuthResult(body)
}

// Refresh exchanges the given session token for a fresh one
// only ErrTokenExpired is authoritative; any other failure means the
// old token may still be usable
func (c *Client) Refresh(ctx context.Context, token string) (AuthToken, error) {
	body, code, err := c.request(ctx, c.authClient(ctx, token), http.MethodPost, c.baseURL+refreshPath, nil)
	if err != nil {
		return AuthToken{}, err
	}
	switch code {
	case http.StatusOK:
		var resp refreshResponse
		if err = json.Unmarshal(body, &resp); err != nil {
			return AuthToken{}, &ServerError{StatusCode: code, Detail: "unparseable refresh response"}
		}
		return AuthToken{Token: resp.Token, ExpiresAt: resp.ExpiresAt.Time}, nil
	case http.StatusUnauthorized:
		return AuthToken{}, ErrTokenExpired
	default:
		return AuthToken{}, &ServerError{StatusCode: code, Detail: errorDetail(body)}
	}
}

// Status validates the given session token and returns the authenticated user
func (c *Client) Status(ctx context.Context, token string) (UserInfo, error) {
	body, code, err := c.request(ctx, c.authClient(ctx, token), http.MethodGet, c.baseURL+statusPath, nil)
	if err != nil {
		return UserInfo{}, err
	}
	switch code {
	case http.StatusOK:
		var resp statusResponse
		if err = json.Unmarshal(body, &resp); err != nil {
			return UserInfo{}, &ServerError{StatusCode: code, Detail: "unparseable status response"}
		}
		return resp.UserInfo, nil
	case http.StatusUnauthorized:
		return UserInfo{}, ErrTokenExpired
	default:
		return UserInfo{}, &ServerError{StatusCode: code, Detail: errorDetail(body)}
	}
}

// Logout invalidates the given session token server-side
func (c *Client) Logout(ctx context.Context, token string) error {
	body, code, err := c.request(ctx, c.authClient(ctx, token), http.MethodPost, c.baseURL+logoutPath, nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return &ServerError{StatusCode: code, Detail: errorDetail(body)}
	}
	return nil
}

// AuthorizationURL asks the backend for an Instagram authorization URL
// together with the CSRF state it generated for this attempt
func (c *Client) AuthorizationURL(ctx context.Context, token string) (AuthorizationURL, error) {
	body, code, err := c.request(ctx, c.authClient(ctx, token), http.MethodGet, c.baseURL+authURLPath, nil)
	if err != nil {
		return AuthorizationURL{}, err
	}
	switch code {
	case http.StatusOK:
		var resp AuthorizationURL
		if err = json.Unmarshal(body, &resp); err != nil {
			return AuthorizationURL{}, &ServerError{StatusCode: code, Detail: "unparseable auth URL response"}
		}
		return resp, nil
	case http.StatusUnauthorized:
		return AuthorizationURL{}, ErrTokenExpired
	default:
		return AuthorizationURL{}, &ServerError{StatusCode: code, Detail: errorDetail(body)}
	}
}

// Connect submits the one-time redirect parameters so the backend can
// persist the Instagram connection record for the authenticated user
func (c *Client) Connect(ctx context.Context, token string, params ConnectParams) error {
	if params.ExpiresIn == 0 {
		params.ExpiresIn = DefaultConnectionExpiry
	}
	body, code, err := c.request(ctx, c.authClient(ctx, token), http.MethodPost, c.baseURL+connectPath, params)
	if err != nil {
		return err
	}
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return ErrTokenExpired
	default:
		return &ServerError{StatusCode: code, Detail: errorDetail(body)}
	}
}

// ConnectionStatus fetches the Instagram connection projection of the
// authenticated user
func (c *Client) ConnectionStatus(ctx context.Context, token string) (ConnectionStatus, error) {
	body, code, err := c.request(ctx, c.authClient(ctx, token), http.MethodGet, c.baseURL+connectionStatusPath, nil)
	if err != nil {
		return ConnectionStatus{}, err
	}
	switch code {
	case http.StatusOK:
		var resp ConnectionStatus
		if err = json.Unmarshal(body, &resp); err != nil {
			return ConnectionStatus{}, &ServerError{StatusCode: code, Detail: "unparseable connection status response"}
		}
		return resp, nil
	case http.StatusUnauthorized:
		return ConnectionStatus{}, ErrTokenExpired
	default:
		return ConnectionStatus{}, &ServerError{StatusCode: code, Detail: errorDetail(body)}
	}
}

// Disconnect removes the Instagram connection record server-side; the
// operation is idempotent
func (c *Client) Disconnect(ctx context.Context, token string) error {
	body, code, err := c.request(ctx, c.authClient(ctx, token), http.MethodPost, c.baseURL+disconnectPath, nil)
	if err != nil {
		return err
	}
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return ErrTokenExpired
	default:
		return &ServerError{StatusCode: code, Detail: errorDetail(body)}
	}
}

// authClient builds an HTTP client that attaches the given session
// token as a bearer credential on every request
func (c *Client) authClient(ctx context.Context, token string) *http.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = requestTimeout
	return client
}

// request makes a request to the AdDeck backend with the given client,
// HTTP method and URL, JSON-encoding the payload when present
func (c *Client) request(ctx context.Context, hc *http.Client, method, URL string, payload interface{}) (body []byte, statusCode int, err error) {
	var reqBody *bytes.Reader
	if payload != nil {
		data, e := json.Marshal(payload)
		if e != nil {
			return nil, 0, e
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, URL, reqBody)
	if err != nil {
		return nil, 0, wrapRequestError(err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, 0, wrapRequestError(err)
	}
	defer resp.Body.Close()

	body, err = readBody(resp)
	if err != nil {
		return nil, resp.StatusCode, wrapRequestError(err)
	}
	return body, resp.StatusCode, nil
}

func parseAuthResult(body []byte) (AuthResult, error) {
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return AuthResult{}, &ServerError{StatusCode: http.StatusOK, Detail: "unparseable auth response"}
	}
	return AuthResult{
		AuthToken: AuthToken{Token: resp.Token, ExpiresAt: resp.ExpiresAt.Time},
		User:      resp.UserInfo,
	}, nil
}

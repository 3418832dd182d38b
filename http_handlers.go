package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"AdDeck/internal/connect"
	"AdDeck/internal/ratelimiters"
	"AdDeck/internal/session"
	"AdDeck/pkg/adsapi"
)

// response bodies
const (
	InternalErrorResponseBody  = "Internal error"
	RateLimitedResponseBody    = "Rate limited"
	InvalidRequestResponseBody = "Invalid request"

	landingPageTemplate = "<!DOCTYPE html><html lang=\"en\"><head><meta charset=\"utf-8\"><title>AdDeck</title></head><body><h1>%s</h1><p>%s</p></body></html>\n"
)

// HandleOAuthLanding handles the Instagram OAuth redirect landing on
// this agent; the backend sends the user here with either the one-time
// exchange parameters or an error code in the query string
func HandleOAuthLanding(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		fmt.Fprintln(w, InvalidRequestResponseBody)
		return
	}

	if !ratelimiters.LandingRequestAllowed(r.Context(), r.RemoteAddr) {
		log.WithField("IP", r.RemoteAddr).Info("rate limited")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprintln(w, RateLimitedResponseBody)
		return
	}

	// the exchange needs a settled, authenticated session; resolve it
	// now if this is the first query since startup
	if sessions.Current().Status == session.StatusPending {
		sessions.Status(r.Context())
	}

	result := connector.Process(r.Context(), r.URL)
	switch result.Disposition {
	case connect.Ignored:
		log.WithField("IP", r.RemoteAddr).Info("invalid landing request: no usable completion marker")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, InvalidRequestResponseBody)
	case connect.Deferred:
		w.WriteHeader(http.StatusUnauthorized)
		renderLandingPage(w, "Login required", "Log in to AdDeck first, then retry connecting your Instagram account.")
	case connect.AlreadyHandled:
		renderLandingPage(w, "Already connected", "This authorization has already been processed.")
	case connect.Completed:
		if result.RedirectTo != "" {
			http.Redirect(w, r, result.RedirectTo, http.StatusFound)
			return
		}
		renderLandingPage(w, "Instagram connected", result.Message)
	case connect.Failed:
		renderLandingPage(w, "Instagram connection failed", result.Message)
	}
}

// HandleAuthLogin handles a login request from the dashboard UI
func HandleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if !decodeJSONRequest(w, r, &payload) {
		return
	}
	// field presence is this caller's job, not the session manager's
	if payload.Identifier == "" || payload.Password == "" {
		respondError(w, http.StatusBadRequest, "identifier and password are required")
		return
	}

	result, err := sessions.Login(r.Context(), payload.Identifier, payload.Password)
	if err != nil {
		respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, authResultResponse(result))
}

// HandleAuthRegister handles a registration request from the dashboard UI
func HandleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSONRequest(w, r, &payload) {
		return
	}
	if payload.Username == "" || payload.Email == "" || payload.Password == "" {
		respondError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	result, err := sessions.Register(r.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		respondAuthError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, authResultResponse(result))
}

// HandleAuthLogout handles a logout request; local state is cleared
// even when the backend is unreachable
func HandleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := sessions.Logout(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear local session")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// HandleAuthStatus resolves and reports the session status
func HandleAuthStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, sessions.Status(r.Context()))
}

// HandleConnectStart begins the Instagram connect flow: it records the
// location to restore afterwards and forwards the user to the
// backend-issued authorization URL
func HandleConnectStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authorization, err := connector.Begin(r.Context(), r.URL.Query().Get("return_to"))
	if err != nil {
		respondConnectError(w, err)
		return
	}
	http.Redirect(w, r, authorization.URL, http.StatusFound)
}

// HandleConnectStatus reports the Instagram connection projection
func HandleConnectStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	status, err := connector.Status(r.Context())
	if err != nil {
		respondConnectError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// HandleConnectDisconnect removes the Instagram connection
func HandleConnectDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := connector.Disconnect(r.Context()); err != nil {
		respondConnectError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func renderLandingPage(w http.ResponseWriter, title, text string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, landingPageTemplate, html.EscapeString(title), html.EscapeString(text))
}

func decodeJSONRequest(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func authResultResponse(result adsapi.AuthResult) map[string]interface{} {
	return map[string]interface{}{
		"status":     "success",
		"token":      result.Token,
		"expires_at": result.ExpiresAt,
		"user_info":  result.User,
	}
}

// respondAuthError maps session errors to responses; credential
// rejections carry the server message verbatim
func respondAuthError(w http.ResponseWriter, err error) {
	var credentialErr *adsapi.CredentialError
	if errors.As(err, &credentialErr) {
		respondError(w, http.StatusUnauthorized, connect.SanitizeMessage(credentialErr.Message))
		return
	}
	log.Errorf("auth request failed: %v", err)
	respondError(w, http.StatusBadGateway, "could not reach the server")
}

func respondConnectError(w http.ResponseWriter, err error) {
	if errors.Is(err, connect.ErrNotConnected) {
		respondError(w, http.StatusUnauthorized, "log in first")
		return
	}
	log.Errorf("connect request failed: %v", err)
	respondError(w, http.StatusBadGateway, "could not reach the server")
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"status": "error", "detail": message})
}

func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

// middleware provides some useful middlewares for the server
func middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() { // returns an HTTP 500 response if the next handler got panicked
			if err := recover(); err != nil {
				log.Errorf("error recovered in request \"%s %s\": %v", r.Method, r.URL.Path, err)
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintln(w, InternalErrorResponseBody)
			}
		}()

		// gets client's real IP if serving behind Cloudflare
		if ip := r.Header.Get("Cf-Connecting-Ip"); ip != "" {
			r.RemoteAddr = ip
		}

		log.WithFields(log.Fields{
			"rid":  uuid.NewString(),
			"IP":   r.RemoteAddr,
			"path": r.URL.Path,
		}).Debugf("%s %s", r.Method, r.URL.Path)

		next.ServeHTTP(w, r)
	})
}

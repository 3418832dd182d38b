// Package connect completes the Instagram authorization handshake
// exactly once per redirect and maintains the client-side projection
// of the connection record.
package connect

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"AdDeck/internal/notify"
	"AdDeck/internal/session"
	"AdDeck/internal/store"
	"AdDeck/pkg/adsapi"
)

// redirect query contract with the backend
const (
	markerParam   = "instagram_auth"
	markerSuccess = "success"
	markerError   = "error"

	errorParam     = "error"
	tokenParam     = "token"
	userIDParam    = "user_id"
	usernameParam  = "username"
	expiresInParam = "expires_in"
)

// ErrNotConnected reports a connection operation without a usable session
var ErrNotConnected = errors.New("connect: no authenticated session")

// Disposition classifies what Process did with a location
type Disposition int

const (
	// Ignored means the location carried no (or a malformed) completion marker
	Ignored Disposition = iota
	// Deferred means the session has not settled or is not logged in;
	// the same location may be processed again later
	Deferred
	// AlreadyHandled means this redirect was exchanged earlier in the
	// process lifetime
	AlreadyHandled
	// Completed means the exchange succeeded
	Completed
	// Failed means the redirect reported an error or the exchange failed
	Failed
)

// Result is the outcome of processing a location
type Result struct {
	Disposition Disposition
	// Message is a sanitized, user-facing description of the outcome
	Message string
	// CleanURL is the location with the completion marker stripped;
	// set when the caller should replace the visible location in place
	CleanURL *url.URL
	// RedirectTo is the restored pre-authorization location; set when
	// the caller should navigate there instead of cleaning in place
	RedirectTo string
}

// Processor completes the handshake; the guard field makes the
// exchange idempotent per process lifetime, which stands in for the
// page load the redirect landed on
type Processor struct {
	api      *adsapi.Client
	sessions *session.Manager
	store    store.Store
	notifier notify.Notifier

	mu      sync.Mutex
	handled bool

	statusMu sync.Mutex
	status   *adsapi.ConnectionStatus
}

// NewProcessor creates a callback processor with an unset guard
func NewProcessor(api *adsapi.Client, sessions *session.Manager, s store.Store, n notify.Notifier) *Processor {
	return &Processor{api: api, sessions: sessions, store: s, notifier: n}
}

// Begin starts the connect flow: it captures the location to return
// the user to afterwards, then asks the backend for the Instagram
// authorization URL the caller should redirect to
func (p *Processor) Begin(ctx context.Context, returnTo string) (adsapi.AuthorizationURL, error) {
	token, err := p.sessions.Token(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return adsapi.AuthorizationURL{}, ErrNotConnected
		}
		return adsapi.AuthorizationURL{}, err
	}

	if returnTo != "" {
		if err = p.store.Set(ctx, store.ReturnToKey, returnTo); err != nil {
			log.Warnf("connect: failed to store return location: %v", err)
		}
	}
	return p.api.AuthorizationURL(ctx, token)
}

// Process inspects the given location for a completion marker and
// exchanges its one-time parameters at most once; it never returns an
// error since every outcome is a well-defined Result
func (p *Processor) Process(ctx context.Context, loc *url.URL) Result {
	query := loc.Query()
	marker := query.Get(markerParam)
	if marker != markerSuccess && marker != markerError {
		return Result{Disposition: Ignored}
	}

	// processing requires an authenticated session; an unsettled or
	// logged-out one defers the whole callback until conditions hold
	status := p.sessions.Current()
	if status.Status == session.StatusPending || !status.IsLoggedIn {
		return Result{Disposition: Deferred}
	}

	if marker == markerError {
		message := SanitizeMessage(query.Get(errorParam))
		if message == "" {
			message = "Instagram authorization failed"
		}
		p.notifier.Notify("Instagram authorization failed: " + message)
		return Result{Disposition: Failed, Message: message, CleanURL: stripMarker(loc)}
	}

	params := adsapi.ConnectParams{
		AccessToken: query.Get(tokenParam),
		UserID:      query.Get(userIDParam),
		Username:    query.Get(usernameParam),
		ExpiresIn:   parseExpiresIn(query.Get(expiresInParam)),
	}
	if params.AccessToken == "" || params.UserID == "" || params.Username == "" {
		// malformed callback, nothing to surface
		return Result{Disposition: Ignored}
	}

	// the guard is taken before any I/O so concurrent invocations of
	// the detection logic cannot both reach the exchange
	p.mu.Lock()
	if p.handled {
		p.mu.Unlock()
		return Result{Disposition: AlreadyHandled}
	}
	p.handled = true
	p.mu.Unlock()

	sessionToken, err := p.sessions.Token(ctx)
	if err != nil {
		p.releaseGuard()
		return Result{Disposition: Deferred}
	}

	if err = p.api.Connect(ctx, sessionToken, params); err != nil {
		// the guard only prevents accidental double submission; a
		// failed exchange must stay retriable
		p.releaseGuard()
		message := exchangeFailureMessage(err)
		p.notifier.Notify("Instagram connection failed: " + message)
		return Result{Disposition: Failed, Message: message}
	}

	p.notifier.Notify(fmt.Sprintf("Instagram account @%s connected", params.Username))
	p.Invalidate()
	if _, err = p.Status(ctx); err != nil {
		log.Warnf("connect: failed to refresh connection status: %v", err)
	}

	result := Result{
		Disposition: Completed,
		Message:     fmt.Sprintf("Connected Instagram account @%s", params.Username),
	}
	if returnTo := p.consumeReturnTo(ctx); returnTo != "" && !sameLocation(returnTo, loc) {
		result.RedirectTo = returnTo
	} else {
		result.CleanURL = stripMarker(loc)
	}
	return result
}

// Status returns the connection projection, serving the cached copy
// when one is held and fetching otherwise
func (p *Processor) Status(ctx context.Context) (adsapi.ConnectionStatus, error) {
	p.statusMu.Lock()
	if p.status != nil {
		cached := *p.status
		p.statusMu.Unlock()
		return cached, nil
	}
	p.statusMu.Unlock()

	token, err := p.sessions.Token(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return adsapi.ConnectionStatus{}, ErrNotConnected
		}
		return adsapi.ConnectionStatus{}, err
	}

	status, err := p.api.ConnectionStatus(ctx, token)
	if err != nil {
		return adsapi.ConnectionStatus{}, err
	}

	p.statusMu.Lock()
	p.status = &status
	p.statusMu.Unlock()
	return status, nil
}

// Invalidate drops the cached projection so the next Status re-fetches
func (p *Processor) Invalidate() {
	p.statusMu.Lock()
	p.status = nil
	p.statusMu.Unlock()
}

// Disconnect removes the connection record; idempotent, its only
// client-side effect is invalidating the cached projection
func (p *Processor) Disconnect(ctx context.Context) error {
	token, err := p.sessions.Token(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotConnected
		}
		return err
	}

	if err = p.api.Disconnect(ctx, token); err != nil {
		return err
	}
	p.Invalidate()
	return nil
}

func (p *Processor) releaseGuard() {
	p.mu.Lock()
	p.handled = false
	p.mu.Unlock()
}

// consumeReturnTo reads and removes the stored return location
func (p *Processor) consumeReturnTo(ctx context.Context) string {
	returnTo, err := p.store.Get(ctx, store.ReturnToKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warnf("connect: failed to read return location: %v", err)
		}
		return ""
	}
	if err = p.store.Delete(ctx, store.ReturnToKey); err != nil {
		log.Warnf("connect: failed to delete return location: %v", err)
	}
	return returnTo
}

func exchangeFailureMessage(err error) string {
	var serverErr *adsapi.ServerError
	if errors.As(err, &serverErr) {
		return SanitizeMessage(serverErr.Detail)
	}
	if errors.Is(err, adsapi.ErrTokenExpired) {
		return "session expired, please log in again"
	}
	return "could not reach the server"
}

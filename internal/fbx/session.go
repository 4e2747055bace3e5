package fbx

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	fbxerrors "github.com/Dlizzz/fbxmetrics/internal/errors"
	"github.com/Dlizzz/fbxmetrics/internal/metrics"
	"github.com/Dlizzz/fbxmetrics/internal/store"
)

const (
	// defaultSessionLifetime applies when the device declares none.
	defaultSessionLifetime = 30 * time.Minute
	// expirySafetyMargin renews the token slightly before its declared
	// lifetime so an in-flight request cannot land on a just-expired token.
	expirySafetyMargin = 30 * time.Second
)

// State is the session lifecycle state.
type State int

const (
	// Unauthenticated means no login has happened yet.
	Unauthenticated State = iota
	// Authenticating means a login handshake is in flight.
	Authenticating
	// Active means the session token is valid for authorized requests.
	Active
	// Expired means the token aged out or the device rejected it.
	Expired
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Active:
		return "active"
	case Expired:
		return "expired"
	}
	return "unknown"
}

// Session owns the live session token and exposes the authorized request
// capability. State transitions are serialized under the mutex: even if a
// future collector parallelizes poll targets, only one re-authentication
// can ever be in flight.
type Session struct {
	client *Client
	auth   *Authenticator
	cred   store.Credential

	mu    sync.Mutex
	state State
	token SessionToken

	now func() time.Time
}

// NewSession creates a session for the stored credential. No network call
// happens until the first authorized request or EnsureAuthenticated.
func NewSession(client *Client, auth *Authenticator, cred store.Credential) *Session {
	return &Session{
		client: client,
		auth:   auth,
		cred:   cred,
		state:  Unauthenticated,
		now:    time.Now,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Active && s.tokenExpired() {
		s.state = Expired
	}
	return s.state
}

// Permissions returns the scopes the device granted at login.
func (s *Session) Permissions() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	perms := make(map[string]bool, len(s.token.Permissions))
	for k, v := range s.token.Permissions {
		perms[k] = v
	}
	return perms
}

// EnsureAuthenticated brings the session to Active, performing the login
// handshake if needed. Idempotent while Active and unexpired: no network
// call happens.
func (s *Session) EnsureAuthenticated(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(ctx)
}

func (s *Session) ensureLocked(ctx context.Context) error {
	if s.state == Active && !s.tokenExpired() {
		return nil
	}

	if s.state == Active {
		slog.Debug("session token aged out, renewing")
		s.state = Expired
	}

	s.state = Authenticating
	token, err := s.auth.Login(ctx, s.cred)
	if err != nil {
		s.state = Unauthenticated
		s.token = SessionToken{}
		return err
	}

	s.state = Active
	s.token = token
	metrics.Logins.Inc()
	slog.Info("session established",
		"permissions", grantedScopes(token.Permissions),
		"lifetime", token.Lifetime)
	return nil
}

func (s *Session) tokenExpired() bool {
	if s.token.Value == "" {
		return true
	}
	return s.now().Sub(s.token.ObtainedAt) >= s.token.Lifetime-expirySafetyMargin
}

// AuthorizedRequest performs one API call with the session header attached,
// transparently authenticating first and re-authenticating at most once
// when the device reports the token invalid. A second authentication
// failure propagates; there is no retry loop here.
func (s *Session) AuthorizedRequest(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}

	result, err := s.client.request(ctx, method, path, body, s.token.Value)
	if err == nil || !invalidatesToken(err) {
		return result, err
	}

	slog.Debug("device rejected session token, re-authenticating once",
		"path", path, "error", err)
	s.state = Expired
	s.token = SessionToken{}

	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}
	return s.client.request(ctx, method, path, body, s.token.Value)
}

// Logout releases the session on the device. Best effort: the token dies
// with the process anyway.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active {
		return
	}

	if _, err := s.client.request(ctx, "POST", "/login/logout/", nil, s.token.Value); err != nil {
		slog.Debug("logout failed", "error", err)
	}

	s.state = Unauthenticated
	s.token = SessionToken{}
}

// invalidatesToken reports whether the error means the current session
// token is no longer usable.
func invalidatesToken(err error) bool {
	return fbxerrors.IsKind(err, fbxerrors.KindAuthRequired) ||
		fbxerrors.IsKind(err, fbxerrors.KindAuthRejected)
}

func grantedScopes(perms map[string]bool) []string {
	scopes := make([]string, 0, len(perms))
	for name, granted := range perms {
		if granted {
			scopes = append(scopes, name)
		}
	}
	return scopes
}

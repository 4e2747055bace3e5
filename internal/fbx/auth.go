package fbx

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	fbxerrors "github.com/Dlizzz/fbxmetrics/internal/errors"
	"github.com/Dlizzz/fbxmetrics/internal/store"
	"github.com/Dlizzz/fbxmetrics/internal/types"
)

// registerPollInterval is the cadence of track-status polls while the
// operator decides on the device's front panel.
const registerPollInterval = 2 * time.Second

// Identity identifies this application to the Freebox. Shown on the front
// panel during authorization and sent with every login.
type Identity struct {
	AppID      types.AppID
	AppName    string
	AppVersion string
	DeviceName string
}

// DefaultIdentity builds the compiled-in application identity. The app_id
// follows the reverse-domain convention the Freebox documentation uses.
func DefaultIdentity(version, deviceName string) Identity {
	appID, _ := types.NewAppID("fr.freebox.fbxmetrics")
	return Identity{
		AppID:      appID,
		AppName:    "fbxmetrics",
		AppVersion: version,
		DeviceName: deviceName,
	}
}

// SessionToken is the short-lived credential produced by a successful login
// handshake. Held in memory only; exactly one valid token per process.
type SessionToken struct {
	Value       string
	ObtainedAt  time.Time
	Lifetime    time.Duration
	Permissions map[string]bool
}

// Authenticator performs the registration and login handshakes. It is a
// stateless request/response mapper: identity and transport are constructor
// inputs, nothing is mutated across calls, and no retries happen here.
type Authenticator struct {
	client   *Client
	identity Identity
}

// NewAuthenticator creates an authenticator bound to one device endpoint.
func NewAuthenticator(client *Client, identity Identity) *Authenticator {
	return &Authenticator{client: client, identity: identity}
}

type authorizeRequest struct {
	AppID      string `json:"app_id"`
	AppName    string `json:"app_name"`
	AppVersion string `json:"app_version"`
	DeviceName string `json:"device_name"`
}

type authorizeResult struct {
	AppToken string `json:"app_token"`
	TrackID  int    `json:"track_id"`
}

type trackResult struct {
	Status    string `json:"status"`
	Challenge string `json:"challenge"`
}

// Register performs the one-time authorization handshake. It submits the
// identity, then polls the track status until the operator grants or denies
// the request on the device display, or the deadline passes.
func (a *Authenticator) Register(ctx context.Context, timeout time.Duration) (store.Credential, error) {
	const op = "fbx.register"

	result, err := a.client.Post(ctx, "/login/authorize/", authorizeRequest{
		AppID:      a.identity.AppID.String(),
		AppName:    a.identity.AppName,
		AppVersion: a.identity.AppVersion,
		DeviceName: a.identity.DeviceName,
	})
	if err != nil {
		return store.Credential{}, err
	}

	var grant authorizeResult
	if err := json.Unmarshal(result, &grant); err != nil {
		return store.Credential{}, fbxerrors.E(fbxerrors.KindUnreachable, op, err)
	}

	trackID, err := types.NewTrackID(grant.TrackID)
	if err != nil {
		return store.Credential{}, fbxerrors.E(fbxerrors.KindUnreachable, op, err)
	}

	slog.Info("authorization requested, approve it on the freebox front panel",
		"app_id", a.identity.AppID.String(),
		"track_id", trackID.Int())

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(registerPollInterval)
	defer tick.Stop()

	for {
		status, err := a.trackStatus(ctx, trackID)
		if err != nil {
			return store.Credential{}, err
		}

		switch status {
		case "granted":
			return store.Credential{AppToken: grant.AppToken, TrackID: trackID}, nil
		case "denied":
			return store.Credential{}, fbxerrors.Errorf(fbxerrors.KindRegistrationDenied, op,
				"authorization denied on the device")
		case "timeout":
			return store.Credential{}, fbxerrors.Errorf(fbxerrors.KindRegistrationTimeout, op,
				"authorization expired on the device")
		case "pending", "unknown":
			// keep polling
		default:
			slog.Warn("unexpected authorization status", "status", status)
		}

		select {
		case <-ctx.Done():
			return store.Credential{}, fbxerrors.E(fbxerrors.KindRegistrationTimeout, op, ctx.Err())
		case <-deadline.C:
			return store.Credential{}, fbxerrors.Errorf(fbxerrors.KindRegistrationTimeout, op,
				"no approval within %v", timeout)
		case <-tick.C:
		}
	}
}

func (a *Authenticator) trackStatus(ctx context.Context, trackID types.TrackID) (string, error) {
	result, err := a.client.Get(ctx, fmt.Sprintf("/login/authorize/%d", trackID.Int()))
	if err != nil {
		return "", err
	}

	var track trackResult
	if err := json.Unmarshal(result, &track); err != nil {
		return "", fbxerrors.E(fbxerrors.KindUnreachable, "fbx.register", err)
	}
	return track.Status, nil
}

type challengeResult struct {
	LoggedIn     bool   `json:"logged_in"`
	Challenge    string `json:"challenge"`
	PasswordSalt string `json:"password_salt"`
}

type sessionRequest struct {
	AppID    string `json:"app_id"`
	Password string `json:"password"`
}

type sessionResult struct {
	SessionToken string          `json:"session_token"`
	Challenge    string          `json:"challenge"`
	Permissions  map[string]bool `json:"permissions"`
	ExpiresIn    int             `json:"expires_in"`
}

// Login performs the two-step challenge-response handshake: fetch the
// current challenge, answer it with the keyed hash of the stored app token,
// receive a session token.
func (a *Authenticator) Login(ctx context.Context, cred store.Credential) (SessionToken, error) {
	const op = "fbx.login"

	result, err := a.client.Get(ctx, "/login/")
	if err != nil {
		return SessionToken{}, err
	}

	var challenge challengeResult
	if err := json.Unmarshal(result, &challenge); err != nil {
		return SessionToken{}, fbxerrors.E(fbxerrors.KindUnreachable, op, err)
	}
	if challenge.Challenge == "" {
		return SessionToken{}, fbxerrors.Errorf(fbxerrors.KindUnreachable, op,
			"device answered without a challenge")
	}

	result, err = a.client.Post(ctx, "/login/session/", sessionRequest{
		AppID:    a.identity.AppID.String(),
		Password: computePassword(cred.AppToken, challenge.Challenge),
	})
	if err != nil {
		return SessionToken{}, err
	}

	var session sessionResult
	if err := json.Unmarshal(result, &session); err != nil {
		return SessionToken{}, fbxerrors.E(fbxerrors.KindUnreachable, op, err)
	}
	if session.SessionToken == "" {
		return SessionToken{}, fbxerrors.Errorf(fbxerrors.KindAuthRejected, op,
			"device granted no session token")
	}

	token := SessionToken{
		Value:       session.SessionToken,
		ObtainedAt:  time.Now(),
		Lifetime:    defaultSessionLifetime,
		Permissions: session.Permissions,
	}
	// The API does not always declare a lifetime; the fallback constant
	// above stands in when it is absent.
	if session.ExpiresIn > 0 {
		token.Lifetime = time.Duration(session.ExpiresIn) * time.Second
	}

	return token, nil
}

// computePassword answers a login challenge. The Freebox API pins the
// algorithm: the hex digest of HMAC-SHA1 keyed with the app token.
func computePassword(appToken, challenge string) string {
	mac := hmac.New(sha1.New, []byte(appToken))
	mac.Write([]byte(challenge))
	return hex.EncodeToString(mac.Sum(nil))
}

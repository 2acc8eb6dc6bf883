package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alecgard/dktadmin/internal/apiclient"
	"github.com/alecgard/dktadmin/internal/auth"
	"github.com/alecgard/dktadmin/internal/notify"
)

// DefaultTTL is how long a stored token is kept.
const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrMissingToken = errors.New("session: token is required")
	ErrMissingUser  = errors.New("session: user is required")
)

// Restoration outcomes reported to the Recorder.
const (
	OutcomeAnonymous     = "anonymous"
	OutcomeAuthenticated = "authenticated"
	OutcomeCached        = "cached"
	OutcomeInvalidated   = "invalidated"
)

// Backend is the subset of the API client the session lifecycle needs.
type Backend interface {
	Authenticate(ctx context.Context, email, password string) (*apiclient.LoginResponse, error)
	CurrentUser(ctx context.Context, token string) (*auth.User, error)
	Logout(ctx context.Context, token string) error
}

// Recorder receives session lifecycle events, typically for metrics.
type Recorder interface {
	SessionRestored(outcome string)
	LoginSucceeded(role string)
	LoginFailed()
	LoggedOut(backendOK bool)
}

// Options configures a Controller. Zero values select defaults.
type Options struct {
	TTL      time.Duration
	Cache    ProfileCache
	Notifier notify.Notifier
	Logger   *slog.Logger
	Recorder Recorder
	Now      func() time.Time
}

// Controller drives the session state machine for one request or CLI
// invocation.
type Controller struct {
	api   Backend
	store TokenStore

	ttl      time.Duration
	cache    ProfileCache
	notifier notify.Notifier
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time

	mu   sync.RWMutex
	snap Snapshot
}

// NewController creates a controller in the anonymous state. Call Restore to
// pick up a stored token.
func NewController(api Backend, store TokenStore, opts Options) *Controller {
	c := &Controller{
		api:      api,
		store:    store,
		ttl:      opts.TTL,
		cache:    opts.Cache,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		now:      opts.Now,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.notifier == nil {
		c.notifier = notify.Discard{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Controller) set(s Snapshot) {
	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}

// Restore resolves the stored token into a user profile. It never fails: a
// token the backend rejects is discarded and the session ends anonymous.
func (c *Controller) Restore(ctx context.Context) Snapshot {
	token, ok := c.store.Load()
	if !ok {
		c.set(Snapshot{})
		c.recordRestore(OutcomeAnonymous)
		return Snapshot{}
	}

	c.set(Snapshot{Token: token, Loading: true})

	if c.cache != nil {
		if u, hit := c.cache.Get(ctx, token); hit {
			s := Snapshot{Token: token, User: u}
			c.set(s)
			c.recordRestore(OutcomeCached)
			return s
		}
	}

	u, err := c.api.CurrentUser(ctx, token)
	if err != nil {
		c.logger.Warn("session restoration failed, discarding token",
			"error", err,
			"unauthorized", apiclient.IsUnauthorized(err),
		)
		c.discard(ctx, token)
		c.set(Snapshot{})
		c.recordRestore(OutcomeInvalidated)
		return Snapshot{}
	}

	if c.cache != nil {
		c.cache.Set(ctx, token, u)
	}
	s := Snapshot{Token: token, User: u}
	c.set(s)
	c.recordRestore(OutcomeAuthenticated)
	return s
}

// Login installs an authenticated session and returns the landing path for
// the user's role.
func (c *Controller) Login(ctx context.Context, token string, user *auth.User) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	if user == nil {
		return "", ErrMissingUser
	}
	if err := c.store.Save(token, c.now(), c.ttl); err != nil {
		return "", fmt.Errorf("persisting session token: %w", err)
	}
	if c.cache != nil {
		c.cache.Set(ctx, token, user)
	}
	c.set(Snapshot{Token: token, User: user})

	c.logger.Info("user signed in", "user_id", user.ID, "role", string(user.Role))
	if c.recorder != nil {
		c.recorder.LoginSucceeded(string(user.Role))
	}
	c.notifier.Notify(notify.Info("Login Successful", fmt.Sprintf("Welcome, %s!", user.Name)))
	return LandingPath(user.Role), nil
}

// SignIn exchanges credentials with the backend and then calls Login. A
// rejected attempt is notified and returned; the session stays anonymous.
func (c *Controller) SignIn(ctx context.Context, email, password string) (string, error) {
	resp, err := c.api.Authenticate(ctx, email, password)
	if err != nil {
		c.logger.Info("sign in rejected", "error", err)
		if c.recorder != nil {
			c.recorder.LoginFailed()
		}
		c.notifier.Notify(notify.Error("Login Failed", apiclient.Message(err, "Invalid email or password.")))
		return "", err
	}
	return c.Login(ctx, resp.Token, resp.User)
}

// Logout ends the session. Revocation on the backend is best effort; local
// state is always cleared. It returns the login path.
func (c *Controller) Logout(ctx context.Context) string {
	token := c.Snapshot().Token
	if token == "" {
		token, _ = c.store.Load()
	}

	backendOK := true
	if token != "" {
		if err := c.api.Logout(ctx, token); err != nil {
			backendOK = false
			c.logger.Error("logout failed on server", "error", err)
			c.notifier.Notify(notify.Error("Logout Error", "Could not log out from server, but local session cleared."))
		}
		c.discard(ctx, token)
	} else if err := c.store.Clear(); err != nil {
		c.logger.Warn("clearing stored token", "error", err)
	}
	c.set(Snapshot{})

	if c.recorder != nil {
		c.recorder.LoggedOut(backendOK)
	}
	c.notifier.Notify(notify.Info("Logged Out", "You have been successfully logged out."))
	return LoginPath
}

func (c *Controller) discard(ctx context.Context, token string) {
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("clearing stored token", "error", err)
	}
	if c.cache != nil {
		c.cache.Delete(ctx, token)
	}
}

func (c *Controller) recordRestore(outcome string) {
	if c.recorder != nil {
		c.recorder.SessionRestored(outcome)
	}
}

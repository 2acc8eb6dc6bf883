package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// TokenStore persists the bearer token between requests or invocations.
type TokenStore interface {
	// Load returns the stored token, or false when none is stored or it
	// has expired.
	Load() (string, bool)
	// Save stores token for ttl, counted from now.
	Save(token string, now time.Time, ttl time.Duration) error
	// Clear removes the stored token.
	Clear() error
}

// CookieConfig describes the browser cookie holding the token.
type CookieConfig struct {
	Name   string
	Secure bool
}

// CookieStore keeps the token in a browser cookie. It is bound to a single
// request/response pair.
type CookieStore struct {
	w   http.ResponseWriter
	r   *http.Request
	cfg CookieConfig

	written bool
	current string
}

// NewCookieStore creates a store reading from r and writing to w.
func NewCookieStore(w http.ResponseWriter, r *http.Request, cfg CookieConfig) *CookieStore {
	return &CookieStore{w: w, r: r, cfg: cfg}
}

func (s *CookieStore) Load() (string, bool) {
	if s.written {
		return s.current, s.current != ""
	}
	c, err := s.r.Cookie(s.cfg.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (s *CookieStore) Save(token string, now time.Time, ttl time.Duration) error {
	maxAge := int(ttl.Seconds())
	if maxAge <= 0 {
		return fmt.Errorf("session: cookie lifetime %s is not positive", ttl)
	}
	expiresAt := now.Add(ttl)
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.cfg.Name,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.written = true
	s.current = token
	return nil
}

func (s *CookieStore) Clear() error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.cfg.Name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.written = true
	s.current = ""
	return nil
}

// Sealer encrypts the token before it is written to disk.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// FileStore keeps the token in a JSON file readable only by the owner. The
// CLI uses it.
type FileStore struct {
	path   string
	sealer Sealer
	logger *slog.Logger
	now    func() time.Time
	remove func(string) error
}

type fileToken struct {
	Token     string    `json:"token"`
	Sealed    bool      `json:"sealed,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, logger: slog.Default(), now: time.Now, remove: os.Remove}
}

// WithLogger sets the logger used for housekeeping failures.
func (s *FileStore) WithLogger(l *slog.Logger) *FileStore {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithSealer makes s encrypt tokens it writes. Sealed files cannot be read
// back without it.
func (s *FileStore) WithSealer(sl Sealer) *FileStore {
	s.sealer = sl
	return s
}

func (s *FileStore) Load() (string, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}
	var ft fileToken
	if err := json.Unmarshal(data, &ft); err != nil || ft.Token == "" {
		return "", false
	}
	if !s.now().Before(ft.ExpiresAt) {
		if err := s.remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("removing expired token file", "path", s.path, "error", err)
		}
		return "", false
	}
	if !ft.Sealed {
		return ft.Token, true
	}
	if s.sealer == nil {
		return "", false
	}
	token, err := s.sealer.Open(ft.Token)
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

func (s *FileStore) Save(token string, now time.Time, ttl time.Duration) error {
	ft := fileToken{Token: token, ExpiresAt: now.Add(ttl).UTC()}
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(token)
		if err != nil {
			return fmt.Errorf("session: sealing token: %w", err)
		}
		ft.Token, ft.Sealed = sealed, true
	}
	data, err := json.Marshal(ft)
	if err != nil {
		return fmt.Errorf("session: encoding token file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: creating token dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: writing token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("session: replacing token file: %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: removing token file: %w", err)
	}
	return nil
}

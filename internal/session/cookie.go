package session

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SessionConfig holds configuration for client sessions.
type SessionConfig struct {
	// SigningKeyFile is the path to the RSA private key that signs session tokens
	SigningKeyFile string `env:"SIGNING_KEY_FILE" default:"var/storage/authsvc.key"`

	// CookieName is the name of the session cookie
	CookieName string `env:"COOKIE_NAME" default:"session"`

	// MaxAge is how long a session stays valid after it was last written
	MaxAge time.Duration `env:"MAX_AGE" default:"744h"`

	// Secure restricts the cookie to HTTPS
	Secure bool `env:"SECURE" default:"false"`
}

// Manager loads sessions from and saves them to request cookies.
type Manager struct {
	codec *Codec
	cfg   SessionConfig
}

// NewManager creates a Manager, loading or generating the signing key.
func NewManager(cfg SessionConfig) (*Manager, error) {
	key, err := GetPrivateKey(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("get private key: %w", err)
	}

	return NewManagerWithKey(key, cfg), nil
}

// NewManagerWithKey creates a Manager signing with key.
func NewManagerWithKey(key *rsa.PrivateKey, cfg SessionConfig) *Manager {
	return &Manager{
		codec: NewCodec(key, cfg.MaxAge),
		cfg:   cfg,
	}
}

// Codec returns the manager's codec.
func (m *Manager) Codec() *Codec {
	return m.codec
}

// Load restores the session carried by the request.
// A missing cookie yields a fresh session; an untrusted one yields a fresh
// session together with ErrInvalidSession, which callers may log and ignore.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return New(), nil
	} else if err != nil {
		return New(), fmt.Errorf("read cookie: %w", errors.Join(ErrInvalidSession, err))
	}

	sess, err := m.codec.Decode(cookie.Value)
	if err != nil {
		return New(), err
	}

	return sess, nil
}

// Save writes the session cookie if the session was modified.
// An emptied session deletes the cookie. Must be called before the response
// header is written.
func (m *Manager) Save(w http.ResponseWriter, sess *Session) error {
	if !sess.Modified() {
		return nil
	}

	//nolint:exhaustruct
	cookie := &http.Cookie{
		Name:     m.cfg.CookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	if sess.Empty() {
		cookie.MaxAge = -1
	} else {
		token, err := m.codec.Encode(sess)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}

		cookie.Value = token
		cookie.MaxAge = int(m.cfg.MaxAge.Seconds())
	}

	http.SetCookie(w, cookie)

	return nil
}

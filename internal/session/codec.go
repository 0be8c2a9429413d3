package session

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession is returned for a token that is malformed, tampered with,
// expired, or signed by another key.
var ErrInvalidSession = errors.New("invalid session")

type claims struct {
	UserID  *int64   `json:"uid,omitempty"`
	Flashes []string `json:"flashes,omitempty"`
	jwt.RegisteredClaims
}

// Codec turns sessions into signed tokens and back.
type Codec struct {
	key    *rsa.PrivateKey
	maxAge time.Duration
	now    func() time.Time
}

// NewCodec creates a Codec signing with key. Tokens expire after maxAge.
func NewCodec(key *rsa.PrivateKey, maxAge time.Duration) *Codec {
	return &Codec{
		key:    key,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Encode signs the session state.
func (c *Codec) Encode(sess *Session) (string, error) {
	now := c.now()

	//nolint:exhaustruct
	cl := claims{
		Flashes: sess.flashes,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
		},
	}

	if id, ok := sess.UserID(); ok {
		cl.UserID = &id
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodPS256, cl).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}

	return token, nil
}

// Decode verifies a token and restores the session it carries.
// Returns ErrInvalidSession if the token cannot be trusted.
func (c *Codec) Decode(token string) (*Session, error) {
	var cl claims

	_, err := jwt.ParseWithClaims(token, &cl,
		func(*jwt.Token) (any, error) {
			return &c.key.PublicKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodPS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse session: %w", errors.Join(ErrInvalidSession, err))
	}

	sess := New()
	sess.flashes = cl.Flashes

	if cl.UserID != nil {
		sess.userID = *cl.UserID
		sess.hasUser = true
	}

	return sess, nil
}

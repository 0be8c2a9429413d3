package authsvc

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"

	"github.com/mkrupp/homecase-auth/internal/domain"
)

// HasherConfig holds the argon2id cost parameters for new digests.
// Existing digests are verified with the parameters embedded in them.
type HasherConfig struct {
	// Memory is the memory cost in KiB
	Memory uint32 `env:"MEMORY" default:"65536"`

	// Time is the number of passes
	Time uint32 `env:"TIME" default:"1"`

	// Threads is the degree of parallelism
	Threads uint8 `env:"THREADS" default:"4"`

	SaltLen uint32 `env:"SALT_LEN" default:"16"`
	KeyLen  uint32 `env:"KEY_LEN" default:"32"`
}

// PasswordHasher derives and checks password digests.
type PasswordHasher interface {
	// Hash derives a self-describing salted digest of password.
	Hash(password string) (string, error)

	// Verify reports whether password matches digest.
	// A malformed digest never matches.
	Verify(password, digest string) bool
}

// Bounds on accepted cost parameters. Digests outside them are rejected
// before any key derivation runs.
const (
	maxMemory  = 1 << 22
	maxTime    = 32
	minSaltLen = 8
	maxSaltLen = 64
	maxKeyLen  = 1 << 10
)

func (cfg HasherConfig) validate() error {
	switch {
	case cfg.Memory == 0 || cfg.Memory > maxMemory:
		return fmt.Errorf("memory must be in [1, %d] KiB, got %d", maxMemory, cfg.Memory)
	case cfg.Time == 0 || cfg.Time > maxTime:
		return fmt.Errorf("time must be in [1, %d], got %d", maxTime, cfg.Time)
	case cfg.Threads == 0:
		return errors.New("threads must be positive")
	case cfg.SaltLen < minSaltLen || cfg.SaltLen > maxSaltLen:
		return fmt.Errorf("salt length must be in [%d, %d], got %d", minSaltLen, maxSaltLen, cfg.SaltLen)
	case cfg.KeyLen == 0 || cfg.KeyLen > maxKeyLen:
		return fmt.Errorf("key length must be in [1, %d], got %d", maxKeyLen, cfg.KeyLen)
	default:
		return nil
	}
}

// Argon2idHasher implements PasswordHasher using argon2id and PHC-formatted digests:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
type Argon2idHasher struct {
	cfg HasherConfig
}

var _ PasswordHasher = (*Argon2idHasher)(nil)

// NewArgon2idHasher creates a new Argon2idHasher. It fails if cfg is out of bounds.
func NewArgon2idHasher(cfg HasherConfig) (*Argon2idHasher, error) {
	if err := cfg.validate(); err != nil {
		return nil, oops.Code("AUTH_HASHER_CONFIG").Wrap(err)
	}

	return &Argon2idHasher{cfg: cfg}, nil
}

// Hash implements PasswordHasher.Hash.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", domain.ErrEmptyPassword
	}

	salt := make([]byte, h.cfg.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, h.cfg.Time, h.cfg.Memory, h.cfg.Threads, h.cfg.KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.cfg.Memory,
		h.cfg.Time,
		h.cfg.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify implements PasswordHasher.Verify.
func (h *Argon2idHasher) Verify(password, digest string) bool {
	params, salt, expected, ok := parseDigest(digest)
	if !ok {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

func parseDigest(digest string) (params HasherConfig, salt, hash []byte, ok bool) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params, nil, nil, false
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Time, &threads); err != nil {
		return params, nil, nil, false
	}

	if threads > 255 {
		return params, nil, nil, false
	}

	params.Threads = uint8(threads)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, false
	}

	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(salt) > maxSaltLen || len(hash) > maxKeyLen {
		return params, nil, nil, false
	}

	params.SaltLen = uint32(len(salt))
	params.KeyLen = uint32(len(hash))

	if params.validate() != nil {
		return params, nil, nil, false
	}

	return params, salt, hash, true
}

// Package token issues and verifies the signed, time-limited tokens that
// authorize account activation and password reset links.
//
// Tokens are not persisted. The HMAC is computed over the user's current
// security-relevant state (password hash, active flag, last login), so any
// change to that state invalidates every previously issued token.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/accounts/internal/models"
)

const (
	defaultTTL = 24 * time.Hour

	// Hex chars of the truncated HMAC kept in the token
	hashLen = 32

	sep = "-"
)

type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// Token lifetime
	// If not set than default is used
	TTL time.Duration
}

type Generator struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func New(cfg Config) (*Generator, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.TTL == 0 {
		cfg.TTL = defaultTTL
	}

	return &Generator{
		key: []byte(cfg.SecretKey),
		ttl: cfg.TTL,
		now: time.Now,
	}, nil
}

// MakeToken returns a token string '{timestamp_b36}-{hmac}' bound to the
// user's current state. Pure function of that state and the wall clock.
func (g *Generator) MakeToken(user models.User) string {
	ts := g.now().Unix()
	return strconv.FormatInt(ts, 36) + sep + g.stateHash(user, ts)
}

// CheckToken reports whether token was issued for the user's current state
// and is still within its TTL. Malformed input never panics, it is just an
// invalid token.
func (g *Generator) CheckToken(user models.User, token string) bool {
	i := strings.LastIndex(token, sep)
	if i < 1 || i == len(token)-1 {
		return false
	}

	ts, err := strconv.ParseInt(token[:i], 36, 64)
	if err != nil || ts < 0 {
		return false
	}

	if g.now().Unix()-ts > int64(g.ttl.Seconds()) {
		return false
	}

	// hmac.Equal compares in constant time
	return hmac.Equal([]byte(token[i+1:]), []byte(g.stateHash(user, ts)))
}

// stateHash signs the user state joined with NUL so field boundaries can't
// be shifted between fields
func (g *Generator) stateHash(user models.User, ts int64) string {
	lastLogin := ""
	if user.LastLoginAt != nil {
		lastLogin = strconv.FormatInt(user.LastLoginAt.Unix(), 10)
	}

	mac := hmac.New(sha256.New, g.key)
	_, _ = io.WriteString(mac, strings.Join([]string{
		user.ID.String(),
		user.HashedPassword,
		strconv.FormatBool(user.Active),
		lastLogin,
		strconv.FormatInt(ts, 10),
	}, "\x00"))

	return hex.EncodeToString(mac.Sum(nil))[:hashLen]
}

// EncodeUID encodes a user id for use as the token subject in URLs
func EncodeUID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

// DecodeUID decodes the token subject back to a user id
func DecodeUID(s string) (uuid.UUID, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error while decoding uid. Err: %w", err)
	}

	id, err := uuid.Parse(string(b))
	if err != nil {
		return uuid.Nil, fmt.Errorf("error while parsing uid. Err: %w", err)
	}

	return id, nil
}

// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jason-s-yu/roomd/internal/models"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or claim checks.
var ErrInvalidToken = errors.New("invalid session token")

// Sessions issues and verifies ed25519-signed JWTs identifying a player.
// The subject is the numeric user id; the "name" claim carries the display name.
type Sessions struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// ttl is the token lifetime; zero issues tokens without an exp claim.
	ttl time.Duration
	now func() time.Time
}

// NewSessions generates a fresh key pair. Tokens do not survive a restart.
func NewSessions(ttl time.Duration) (*Sessions, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key pair: %w", err)
	}
	return &Sessions{privateKey: priv, publicKey: pub, ttl: ttl, now: time.Now}, nil
}

// NewSessionsFromPath reads a raw ed25519 key pair from disk.
func NewSessionsFromPath(privatePath, publicPath string, ttl time.Duration) (*Sessions, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("unexpected ed25519 key sizes %d/%d", len(privateKeyData), len(publicKeyData))
	}
	return &Sessions{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// CreateToken signs a token for user.
func (s *Sessions) CreateToken(user models.UserInfo) (string, error) {
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(int64(user.ID), 10),
		"name": user.Name,
	}
	if user.Language != "" {
		claims["lang"] = user.Language
	}
	if s.ttl > 0 {
		claims["exp"] = s.now().Add(s.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// Authenticate verifies tokenString and returns the user it was issued for.
func (s *Sessions) Authenticate(tokenString string) (models.UserInfo, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return models.UserInfo{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseInt(sub, 10, 32)
	if err != nil || id == 0 {
		return models.UserInfo{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, sub)
	}

	name, _ := claims["name"].(string)
	lang, _ := claims["lang"].(string)
	return models.UserInfo{ID: int32(id), Name: name, Language: lang}, nil
}

package auth

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jason-s-yu/roomd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	s, err := NewSessions(0)
	require.NoError(t, err)

	token, err := s.CreateToken(models.UserInfo{ID: 42, Name: "alice", Language: "en-US"})
	require.NoError(t, err)

	u, err := s.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, models.UserInfo{ID: 42, Name: "alice", Language: "en-US"}, u)
}

func TestTokenExpiry(t *testing.T) {
	s, err := NewSessions(time.Hour)
	require.NoError(t, err)
	issued := time.Now()
	s.now = func() time.Time { return issued }

	token, err := s.CreateToken(models.UserInfo{ID: 7, Name: "bob"})
	require.NoError(t, err)
	_, err = s.Authenticate(token)
	require.NoError(t, err)

	s.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = s.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromOtherKeyRejected(t *testing.T) {
	a, err := NewSessions(0)
	require.NoError(t, err)
	b, err := NewSessions(0)
	require.NoError(t, err)

	token, err := a.CreateToken(models.UserInfo{ID: 1})
	require.NoError(t, err)
	_, err = b.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Authenticate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenBadSubject(t *testing.T) {
	s, err := NewSessions(0)
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{"sub": "abc"}).SignedString(s.privateKey)
	require.NoError(t, err)
	_, err = s.Authenticate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRoomPassword(t *testing.T) {
	hash, err := HashRoomPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := CheckRoomPassword("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckRoomPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRoomWithoutPassword(t *testing.T) {
	hash, err := HashRoomPassword("")
	require.NoError(t, err)
	assert.Empty(t, hash)

	ok, err := CheckRoomPassword("anything", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDecodeHashErrors(t *testing.T) {
	_, _, _, err := DecodeHash("plain")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, _, _, err = DecodeHash("$argon2id$v=1$m=1,t=1,p=1$c2FsdA$a2V5")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)

	_, err = ComparePasswordAndHash("x", "$argon2id$v=19$m=1,t=1,p=1$!!$a2V5")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestSessionsFromPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "ed25519")
	pubPath := filepath.Join(dir, "ed25519.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	issuer, err := NewSessionsFromPath(privPath, pubPath, 0)
	require.NoError(t, err)
	verifier, err := NewSessionsFromPath(privPath, pubPath, 0)
	require.NoError(t, err)

	token, err := issuer.CreateToken(models.UserInfo{ID: 3, Name: "carol"})
	require.NoError(t, err)
	u, err := verifier.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, int32(3), u.ID)

	require.NoError(t, os.WriteFile(pubPath, []byte("short"), 0o644))
	_, err = NewSessionsFromPath(privPath, pubPath, 0)
	assert.Error(t, err)

	_, err = NewSessionsFromPath(filepath.Join(dir, "missing"), pubPath, 0)
	assert.Error(t, err)
}

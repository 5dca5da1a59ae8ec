package remote

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenSource_None(t *testing.T) {
	src, err := NewTokenSource(AuthConfig{Mode: AuthNone})
	assert.NoError(t, err)
	assert.Nil(t, src)

	src, err = NewTokenSource(AuthConfig{})
	assert.NoError(t, err)
	assert.Nil(t, src)
}

func TestNewTokenSource_Static(t *testing.T) {
	src, err := NewTokenSource(AuthConfig{Mode: AuthStatic, Token: "tok-1"})
	require.NoError(t, err)

	token, err := src.Token()
	assert.NoError(t, err)
	assert.Equal(t, "tok-1", token)
}

func TestNewTokenSource_StaticRequiresToken(t *testing.T) {
	_, err := NewTokenSource(AuthConfig{Mode: AuthStatic})
	assert.ErrorContains(t, err, "auth token is required")
}

func TestNewTokenSource_JWTRequiresSecret(t *testing.T) {
	_, err := NewTokenSource(AuthConfig{Mode: AuthJWT})
	assert.ErrorContains(t, err, "auth secret is required")
}

func TestNewTokenSource_UnknownMode(t *testing.T) {
	_, err := NewTokenSource(AuthConfig{Mode: "oauth"})
	assert.ErrorContains(t, err, "unsupported auth mode")
}

func TestJWTTokenSource_SignsValidToken(t *testing.T) {
	src, err := NewTokenSource(AuthConfig{
		Mode:    AuthJWT,
		Secret:  "s3cret",
		Subject: "device-7",
		TTL:     time.Minute,
	})
	require.NoError(t, err)

	signed, err := src.Token()
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			t.Fatalf("unexpected signing method: %v", token.Method)
		}
		return []byte("s3cret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "device-7", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestJWTTokenSource_CachesUntilExpiry(t *testing.T) {
	src, err := NewTokenSource(AuthConfig{
		Mode:    AuthJWT,
		Secret:  "s3cret",
		Subject: "device-7",
		TTL:     time.Hour,
	})
	require.NoError(t, err)

	first, err := src.Token()
	require.NoError(t, err)
	second, err := src.Token()
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestJWTTokenSource_RefreshesNearExpiry(t *testing.T) {
	js, ok := mustTokenSource(t, AuthConfig{Mode: AuthJWT, Secret: "s3cret", TTL: time.Hour}).(*jwtTokenSource)
	require.True(t, ok)

	first, err := js.Token()
	require.NoError(t, err)

	// Force the cached token into the refresh window.
	js.mu.Lock()
	js.expires = time.Now()
	js.mu.Unlock()

	second, err := js.Token()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func mustTokenSource(t *testing.T, cfg AuthConfig) TokenSource {
	t.Helper()
	src, err := NewTokenSource(cfg)
	require.NoError(t, err)
	return src
}

package remote

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenSource yields a bearer token for outgoing requests. Implementations
// must be safe for concurrent use.
type TokenSource interface {
	Token() (string, error)
}

// NewTokenSource builds a token source for the configured auth mode. Mode
// none returns nil: requests go out unauthenticated.
func NewTokenSource(cfg AuthConfig) (TokenSource, error) {
	switch cfg.Mode {
	case "", AuthNone:
		return nil, nil
	case AuthStatic:
		if cfg.Token == "" {
			return nil, fmt.Errorf("auth token is required for static mode")
		}
		return &staticTokenSource{token: cfg.Token}, nil
	case AuthJWT:
		if cfg.Secret == "" {
			return nil, fmt.Errorf("auth secret is required for jwt mode")
		}
		ttl := cfg.TTL
		if ttl <= 0 {
			ttl = 15 * time.Minute
		}
		return &jwtTokenSource{
			secret:  []byte(cfg.Secret),
			subject: cfg.Subject,
			ttl:     ttl,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}

type staticTokenSource struct {
	token string
}

func (s *staticTokenSource) Token() (string, error) {
	return s.token, nil
}

// jwtTokenSource signs short-lived HS256 tokens from a shared secret and
// caches the current one until it nears expiry.
type jwtTokenSource struct {
	secret  []byte
	subject string
	ttl     time.Duration

	mu      sync.Mutex
	current string
	expires time.Time
}

func (s *jwtTokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Refresh ahead of expiry so an in-flight request never carries a token
	// that dies mid-call.
	if s.current != "" && time.Now().Before(s.expires.Add(-s.ttl/4)) {
		return s.current, nil
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   s.subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.current = signed
	s.expires = claims.ExpiresAt.Time
	return signed, nil
}

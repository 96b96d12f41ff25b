package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenConfig      = errors.New("signing key is not set")
	ErrUnexpectedMethod = errors.New("unexpected sign method")
)

type Reason string

const (
	ReasonConfig    Reason = "config"
	ReasonExpired   Reason = "expired"
	ReasonMalformed Reason = "malformed"
	ReasonSignature Reason = "signature"
	ReasonInvalid   Reason = "invalid"
)

// TokenError covers every issue or verify failure. Reason is for logs;
// callers answer all of them the same way.
type TokenError struct {
	Reason Reason
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e *TokenError) Unwrap() error { return e.Err }

type Principal struct {
	ID   string
	Role string
}

type Claims struct {
	OwnerID string `json:"id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

type Manager struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func NewManager(secret []byte, ttl time.Duration) *Manager {
	return &Manager{Secret: secret, TTL: ttl}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) Generate(p Principal) (string, error) {
	if len(m.Secret) == 0 {
		return "", &TokenError{Reason: ReasonConfig, Err: ErrTokenConfig}
	}

	now := m.now()
	claims := Claims{
		OwnerID: p.ID,
		Role:    p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.TTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	if err != nil {
		return "", &TokenError{Reason: ReasonInvalid, Err: fmt.Errorf("sign token: %w", err)}
	}
	return signed, nil
}

func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	if len(m.Secret) == 0 {
		return nil, &TokenError{Reason: ReasonConfig, Err: ErrTokenConfig}
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrUnexpectedMethod
		}
		return m.Secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, &TokenError{Reason: reasonOf(err), Err: err}
	}
	if !tkn.Valid {
		return nil, &TokenError{Reason: ReasonInvalid, Err: errors.New("token is invalid")}
	}
	if claims.OwnerID == "" {
		return nil, &TokenError{Reason: ReasonInvalid, Err: errors.New("token has no id")}
	}
	return &claims, nil
}

func reasonOf(err error) Reason {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ReasonExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ReasonMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrUnexpectedMethod):
		return ReasonSignature
	default:
		return ReasonInvalid
	}
}

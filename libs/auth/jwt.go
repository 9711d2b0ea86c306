package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	errNoKey        = errors.New("no verification key for token")
	errNoSubject    = errors.New("token has no subject")
)

// Account roles carried in app_metadata by the hosted identity provider.
const (
	RoleTrainer = "trainer"
	RoleClient  = "client"
)

// Claims is the subset of the identity provider's access token the booking service reads.
// "role" is the provider's database role (usually "authenticated"); the fitness platform
// role lives in app_metadata.
type Claims struct {
	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

// Valid adds a subject requirement to the registered time checks.
func (c Claims) Valid() error {
	if err := c.RegisteredClaims.Valid(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Subject) == "" {
		return errNoSubject
	}
	return nil
}

// AccountRole returns trainer or client, preferring app_metadata.
func (c Claims) AccountRole() string {
	if r := strings.TrimSpace(c.AppMetadata.Role); r != "" {
		return r
	}
	return strings.TrimSpace(c.Role)
}

// SignHS256 mints a token the way the identity provider does in shared-secret mode.
// Used by tests and local tooling.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verifier checks bearer tokens issued by the hosted identity provider. RS256 tokens are
// checked against the JWKS endpoint by key id; HS256 tokens against the shared secret.
// Either source may be left unset to refuse that algorithm.
type Verifier struct {
	Secret string
	JWKS   *JWKSClient
}

func (v Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, v.keyFor,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

func (v Verifier) keyFor(t *jwt.Token) (any, error) {
	switch t.Method.Alg() {
	case jwt.SigningMethodHS256.Alg():
		if v.Secret == "" {
			return nil, errNoKey
		}
		return []byte(v.Secret), nil
	case jwt.SigningMethodRS256.Alg():
		kid, _ := t.Header["kid"].(string)
		if v.JWKS == nil || kid == "" {
			return nil, errNoKey
		}
		pub, err := v.JWKS.Get(kid)
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
	}
}

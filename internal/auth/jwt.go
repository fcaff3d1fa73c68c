package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"parcel-dispatch/internal/domain"
)

// ErrUnauthenticated is returned for a missing, malformed, expired or forged credential.
var ErrUnauthenticated = errors.New("unauthenticated")

// Claims are the JWT claims of an access token. The subject holds the user id.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verifier decodes bearer tokens into actors.
type Verifier interface {
	Verify(token string) (domain.Actor, error)
}

// JWT issues and verifies HS256 access tokens.
type JWT struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWT creates a new JWT signer/verifier.
func NewJWT(secret, issuer string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWT{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue returns a signed token for the actor.
func (j *JWT) Issue(a domain.Actor) (string, error) {
	now := j.now()
	claims := Claims{
		Role: a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(a.ID, 10),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses the token and returns the actor it was issued to.
func (j *JWT) Verify(token string) (domain.Actor, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return domain.Actor{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	var claims Claims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return domain.Actor{}, fmt.Errorf("%w: token has expired", ErrUnauthenticated)
		case errors.Is(err, jwt.ErrTokenMalformed):
			return domain.Actor{}, fmt.Errorf("%w: token is malformed", ErrUnauthenticated)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return domain.Actor{}, fmt.Errorf("%w: invalid token signature", ErrUnauthenticated)
		}
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return domain.Actor{}, fmt.Errorf("%w: invalid subject", ErrUnauthenticated)
	}
	if !claims.Role.Valid() {
		return domain.Actor{}, fmt.Errorf("%w: invalid role", ErrUnauthenticated)
	}
	return domain.Actor{ID: id, Role: claims.Role}, nil
}

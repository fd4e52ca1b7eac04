package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "frisk/pkg/domain-errors"
)

// Claims is the JWT payload. Role and university scope are deliberately NOT
// claims: they are re-fetched from the user store on every request so that a
// role change takes effect immediately.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates session tokens. Tokens carry a jti so
// individual sessions can be revoked before expiry.
type TokenIssuer struct {
	key []byte
	ttl time.Duration
}

func NewTokenIssuer(signingKey string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{key: []byte(signingKey), ttl: ttl}
}

// Issue creates a signed token for a user. Returns the token string, its jti
// and its expiry.
func (ti *TokenIssuer) Issue(userID uuid.UUID, now time.Time) (string, string, time.Time, error) {
	jti := uuid.NewString()
	expiresAt := now.Add(ti.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return "", "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign token")
	}
	return signed, jti, expiresAt, nil
}

// Validate parses and verifies a token, returning the user ID and jti.
func (ti *TokenIssuer) Validate(tokenStr string) (uuid.UUID, string, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return ti.key, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, "", dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", dErrors.New(dErrors.CodeUnauthorized, "malformed token subject")
	}
	return userID, claims.ID, nil
}

// TTL exposes the configured session length.
func (ti *TokenIssuer) TTL() time.Duration { return ti.ttl }

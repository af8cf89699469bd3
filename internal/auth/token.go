// Package auth resolves bearer tokens issued by the identity service into actors.
package auth

import (
	"crypto/rsa"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/gigconnect/internal/domain"
)

var signingMethod = jwt.SigningMethodRS256

// Claims is the token payload. Subject carries the user id.
type Claims struct {
	Role      string `json:"role"`
	ProfileID string `json:"profile_id,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	key    *rsa.PublicKey
	issuer string
}

// NewVerifier parses a PEM encoded RSA public key. An empty issuer disables the issuer check.
func NewVerifier(publicKeyPEM, issuer string) (*Verifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, errors.Wrap(err, "parse jwt public key")
	}
	return &Verifier{key: key, issuer: issuer}, nil
}

// Verify checks the signature and expiry and maps the claims to an actor.
// A token without profile_id yields an actor that owns no profile.
func (v *Verifier) Verify(token string) (domain.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, opts...)
	if err != nil {
		return domain.Actor{}, errors.Mark(errors.Wrap(err, "invalid token"), domain.ErrUnauthenticated)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Actor{}, errors.Wrap(domain.ErrUnauthenticated, "subject is not a user id")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Actor{}, errors.Wrapf(domain.ErrUnauthenticated, "unknown role %q", claims.Role)
	}
	actor := domain.Actor{UserID: userID, Role: role}
	if claims.ProfileID != "" {
		if actor.ProfileID, err = uuid.Parse(claims.ProfileID); err != nil {
			return domain.Actor{}, errors.Wrap(domain.ErrUnauthenticated, "profile_id is not a uuid")
		}
	}
	return actor, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

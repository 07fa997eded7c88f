package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrUnknownKID = errors.New("jwtx: unknown kid")

	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// Verifier validates JWTs against a KeySet. It resolves the verification
// key from the token's kid header, so one verifier covers every signing
// key the service has published, regardless of algorithm.
type Verifier struct {
	keys   *KeySet
	algs   []string
	issuer string
	aud    []string
}

// NewVerifier creates a verifier restricted to the given algorithms.
func NewVerifier(keys *KeySet, algs []string, issuer string, aud []string) *Verifier {
	return &Verifier{keys: keys, algs: algs, issuer: issuer, aud: aud}
}

// Verify validates the JWT string and returns its parsed claims.
func (v *Verifier) Verify(tokenStr string) (AccessClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods(v.algs))

	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("jwtx: missing kid")
		}

		pub, err := v.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
		}
		return pub, nil
	})
	if err != nil {
		return AccessClaims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return AccessClaims{}, ErrMalformed
	}

	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return AccessClaims{}, err
	}
	if err := claims.ValidateAudience(v.aud); err != nil {
		return AccessClaims{}, err
	}
	if err := claims.ValidateExpiry(); err != nil {
		return AccessClaims{}, err
	}

	return *claims, nil
}

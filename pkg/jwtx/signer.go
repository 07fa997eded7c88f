package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Supported JWT signing algorithms.
const (
	AlgorithmRS256 = "RS256"
	AlgorithmES256 = "ES256"
	AlgorithmEdDSA = "EdDSA"
)

// Signer signs JWTs under a single key and publishes its public half as a
// JWK. Sign accepts any jwt.Claims so access tokens (typed claims) and
// identity tokens (claim maps) share one signing path.
type Signer interface {
	Alg() string
	KID() string
	Sign(claims jwt.Claims) (string, error)
	PublicJWK() JWK
}

type signer struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.PrivateKey
	jwk    JWK
}

func (s *signer) Alg() string    { return s.method.Alg() }
func (s *signer) KID() string    { return s.kid }
func (s *signer) PublicJWK() JWK { return s.jwk }

func (s *signer) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// NewSigner creates a signer for the given algorithm from a parsed private
// key (as returned by cryptox.ParsePrivateKey).
func NewSigner(alg, kid string, key crypto.PrivateKey) (Signer, error) {
	switch alg {
	case AlgorithmRS256:
		rk, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("jwtx: RS256 requires an RSA private key")
		}
		return &signer{
			kid:    kid,
			method: jwt.SigningMethodRS256,
			key:    rk,
			jwk:    NewRSAJWK(kid, "sig", AlgorithmRS256, &rk.PublicKey),
		}, nil

	case AlgorithmES256:
		ek, ok := key.(*ecdsa.PrivateKey)
		if !ok || ek.Curve != elliptic.P256() {
			return nil, errors.New("jwtx: ES256 requires a P-256 ECDSA private key")
		}
		return &signer{
			kid:    kid,
			method: jwt.SigningMethodES256,
			key:    ek,
			jwk:    NewECDSAJWK(kid, "sig", AlgorithmES256, &ek.PublicKey),
		}, nil

	case AlgorithmEdDSA:
		dk, ok := key.(ed25519.PrivateKey)
		if !ok {
			return nil, errors.New("jwtx: EdDSA requires an Ed25519 private key")
		}
		return &signer{
			kid:    kid,
			method: jwt.SigningMethodEdDSA,
			key:    dk,
			jwk:    NewEd25519JWK(kid, "sig", AlgorithmEdDSA, dk.Public().(ed25519.PublicKey)),
		}, nil

	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", alg)
	}
}

package oauthx

import (
	"crypto/sha256"
	"encoding/base64"

	"github.com/openpass-dev/openpass/pkg/cryptox"
)

// PKCE code challenge methods per RFC 7636.
const (
	CodeChallengePlain = "plain"
	CodeChallengeS256  = "S256"
)

// GenerateCodeVerifier returns a fresh 43-character PKCE code verifier.
func GenerateCodeVerifier() (string, error) {
	return cryptox.GenerateToken(cryptox.TokenSize256)
}

// CodeChallengeFromVerifier derives the S256 code challenge for a
// verifier: base64url(sha256(verifier)) without padding.
func CodeChallengeFromVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

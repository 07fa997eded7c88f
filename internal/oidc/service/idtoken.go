package service

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openpass-dev/openpass/internal/oidc/claims"
	"github.com/openpass-dev/openpass/internal/oidc/domain"
	"github.com/openpass-dev/openpass/pkg/jwtx"
)

// IdentityTokenBuilder assembles and signs id_tokens. It is only invoked
// when the granted scopes include openid.
type IdentityTokenBuilder struct {
	KeyManager *jwtx.KeyManager
	Extractor  *claims.Extractor
	Issuer     string
}

// Build produces the compact id_token for a grant. The token's lifetime is
// bound to the access token expiry, the audience is the client id, and the
// nonce from the original authorize request is carried verbatim. Claims
// beyond the registered set come from the extraction engine, filtered by
// the granted scopes.
func (b *IdentityTokenBuilder) Build(
	user domain.User,
	clientID string,
	scopes []string,
	nonce string,
	accessToken string,
	expiresAt time.Time,
) (string, error) {
	extracted := b.Extractor.Extract(scopes, user.Claims)

	sub := user.ID
	if raw, ok := extracted["sub"]; ok {
		v, isString := raw.(string)
		if !isString || v == "" {
			return "", ErrMissingSubjectClaim
		}
		if v != user.ID {
			return "", fmt.Errorf("%w: subject claim does not match user", ErrMissingSubjectClaim)
		}
	}
	if sub == "" {
		return "", ErrMissingSubjectClaim
	}

	tokenClaims := jwt.MapClaims{}
	for name, value := range extracted {
		tokenClaims[name] = value
	}

	now := time.Now()
	tokenClaims["iss"] = b.Issuer
	tokenClaims["aud"] = clientID
	tokenClaims["sub"] = sub
	tokenClaims["iat"] = now.Unix()
	tokenClaims["exp"] = expiresAt.Unix()
	if accessToken != "" {
		tokenClaims["at_hash"] = AccessTokenHash(accessToken)
	}
	if nonce != "" {
		tokenClaims["nonce"] = nonce
	}

	return b.KeyManager.GetSigner().Sign(tokenClaims)
}

// AccessTokenHash computes the OIDC at_hash value: the base64url encoding
// (no padding) of the left half of the SHA-256 digest of the access token
// string.
func AccessTokenHash(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}

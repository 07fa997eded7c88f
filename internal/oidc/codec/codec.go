// Package codec encodes authorization-code payloads into opaque strings.
// The payload is serialized to JSON, sealed with AES-256-GCM under the
// server key, and base64url encoded. Clients cannot read or forge codes.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openpass-dev/openpass/internal/oidc/domain"
	"github.com/openpass-dev/openpass/pkg/cryptox"
)

// ErrInvalidCode is the single failure mode for decoding. Truncation,
// tampering, a wrong key, and malformed JSON all collapse into it so the
// token endpoint cannot be used as a decryption oracle.
var ErrInvalidCode = errors.New("codec: invalid authorization code")

// Codec seals and opens authorization code payloads under one server key.
type Codec struct {
	key []byte
}

// New returns a Codec for the given 32-byte key.
func New(key []byte) (*Codec, error) {
	if len(key) != cryptox.KeySize {
		return nil, fmt.Errorf("codec: key must be %d bytes, got %d", cryptox.KeySize, len(key))
	}
	return &Codec{key: key}, nil
}

// Encode serializes and encrypts the payload into the code string handed
// to the client.
func (c *Codec) Encode(payload domain.CodePayload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("codec: marshal payload: %w", err)
	}

	sealed, err := cryptox.Seal(c.key, raw)
	if err != nil {
		return "", fmt.Errorf("codec: seal payload: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode decrypts and parses a code string. Every failure returns
// ErrInvalidCode without further detail.
func (c *Codec) Decode(code string) (domain.CodePayload, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(code)
	if err != nil {
		return domain.CodePayload{}, ErrInvalidCode
	}

	raw, err := cryptox.Open(c.key, sealed)
	if err != nil {
		return domain.CodePayload{}, ErrInvalidCode
	}

	var payload domain.CodePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.CodePayload{}, ErrInvalidCode
	}
	return payload, nil
}

package jwtx

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/openpass-dev/openpass/pkg/cryptox"
)

// KeyManager owns the signing keys for an instance. Keys are ephemeral:
// generated at startup, never persisted, so every token becomes invalid on
// restart. Multiple keys are kept active and picked at random for signing.
type KeyManager struct {
	Verifier *Verifier
	KeySet   *KeySet

	algorithm string

	mu      sync.RWMutex
	signers []Signer
}

// KeyManagerOptions configures the KeyManager.
type KeyManagerOptions struct {
	// Algorithm is one of "RS256", "ES256", "EdDSA".
	Algorithm string

	// Issuer is validated against the iss claim during verification.
	Issuer string

	// Audience values validated against aud. Empty means no check.
	Audience []string

	// RSABits sets the RSA key size for RS256. Defaults to 4096.
	RSABits int

	// NumKeys is how many signing keys to generate. Defaults to 3,
	// capped at 10.
	NumKeys int
}

// NewEphemeralKeyManager generates fresh in-memory keys and wires them to
// a KeySet and Verifier.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: Issuer is required")
	}

	numKeys := opts.NumKeys
	if numKeys <= 0 {
		numKeys = 3
	}
	if numKeys > 10 {
		numKeys = 10
	}

	keyset := NewKeySet()
	signers := make([]Signer, 0, numKeys)

	for i := 0; i < numKeys; i++ {
		kid, err := newKID()
		if err != nil {
			return nil, err
		}

		s, err := generateSigner(opts.Algorithm, kid, opts.RSABits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate signer %d: %w", i+1, err)
		}

		if err := keyset.AddSigner(s); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add signer %d to keyset: %w", i+1, err)
		}
		signers = append(signers, s)
	}

	return &KeyManager{
		Verifier:  NewVerifier(keyset, []string{opts.Algorithm}, opts.Issuer, opts.Audience),
		KeySet:    keyset,
		algorithm: opts.Algorithm,
		signers:   signers,
	}, nil
}

func generateSigner(algorithm, kid string, rsaBits int) (Signer, error) {
	var pemBytes []byte
	var err error

	switch algorithm {
	case AlgorithmRS256:
		bits := rsaBits
		if bits == 0 {
			bits = 4096
		}
		pemBytes, err = cryptox.GenerateRSAKey(bits)
	case AlgorithmES256:
		pemBytes, err = cryptox.GenerateECDSAKey()
	case AlgorithmEdDSA:
		pemBytes, err = cryptox.GenerateEd25519Key()
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q (supported: RS256, ES256, EdDSA)", algorithm)
	}
	if err != nil {
		return nil, err
	}

	key, err := cryptox.ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, err
	}
	return NewSigner(algorithm, kid, key)
}

// Algorithm returns the signing algorithm in use.
func (km *KeyManager) Algorithm() string {
	return km.algorithm
}

// IsReady returns true if the KeyManager has keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady()
}

// GetSigner returns a randomly selected active signing key.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	default:
		return km.signers[rand.IntN(len(km.signers))]
	}
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// RetireSigner removes a key from active signing. The key stays in the
// KeySet so outstanding tokens still verify. The last key cannot be
// retired.
func (km *KeyManager) RetireSigner(kid string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if len(km.signers) <= 1 {
		return fmt.Errorf("jwtx: cannot retire the last signing key")
	}

	for i, s := range km.signers {
		if s.KID() == kid {
			km.signers = append(km.signers[:i], km.signers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("jwtx: signer with kid %q not found", kid)
}

func newKID() (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", fmt.Errorf("jwtx: failed to generate key ID: %w", err)
	}
	return "openpass-" + token, nil
}

// Package pkce implements Proof Key for Code Exchange verification
// (RFC 7636) for the authorization code grant.
package pkce

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"regexp"
	"sync"
)

// Standard code_challenge_method names.
const (
	MethodPlain = "plain"
	MethodS256  = "S256"
)

var (
	ErrUnsupportedMethod = errors.New("pkce: unsupported code challenge method")
	ErrVerifierFormat    = errors.New("pkce: code verifier format is invalid")
	ErrVerifierMismatch  = errors.New("pkce: code verifier does not match challenge")
)

// verifierFormat is the unreserved-character alphabet and length bounds
// from RFC 7636 section 4.1.
var verifierFormat = regexp.MustCompile(`^[A-Za-z0-9\-._~]{43,128}$`)

// ValidFormat reports whether s satisfies the RFC 7636 charset and
// length rule. It applies to both code_verifier and code_challenge.
func ValidFormat(s string) bool {
	return verifierFormat.MatchString(s)
}

// Verifier checks a code_verifier against a stored code_challenge.
type Verifier interface {
	// Method is the code_challenge_method value this verifier handles.
	Method() string

	// Verify reports whether the verifier matches the challenge. The
	// verifier string has already passed the format gate.
	Verify(verifier, challenge string) bool
}

// Registry maps code_challenge_method names to verifiers. The standard
// "plain" and "S256" methods are always present.
type Registry struct {
	mu        sync.RWMutex
	verifiers map[string]Verifier
}

// NewRegistry returns a Registry with the plain and S256 methods.
func NewRegistry() *Registry {
	r := &Registry{verifiers: make(map[string]Verifier, 2)}
	r.Add(plainVerifier{})
	r.Add(s256Verifier{})
	return r
}

// Add registers a verifier for its method, replacing any existing one.
func (r *Registry) Add(v Verifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifiers[v.Method()] = v
}

// Verify validates the code_verifier against the stored challenge using
// the named method.
func (r *Registry) Verify(method, verifier, challenge string) error {
	r.mu.RLock()
	v, ok := r.verifiers[method]
	r.mu.RUnlock()
	if !ok {
		return ErrUnsupportedMethod
	}

	if !verifierFormat.MatchString(verifier) {
		return ErrVerifierFormat
	}

	if !v.Verify(verifier, challenge) {
		return ErrVerifierMismatch
	}
	return nil
}

// Supports reports whether a method is registered.
func (r *Registry) Supports(method string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.verifiers[method]
	return ok
}

// Methods returns the registered method names.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.verifiers))
	for name := range r.verifiers {
		names = append(names, name)
	}
	return names
}

type plainVerifier struct{}

func (plainVerifier) Method() string { return MethodPlain }

func (plainVerifier) Verify(verifier, challenge string) bool {
	return subtle.ConstantTimeCompare([]byte(verifier), []byte(challenge)) == 1
}

type s256Verifier struct{}

func (s256Verifier) Method() string { return MethodS256 }

func (s256Verifier) Verify(verifier, challenge string) bool {
	sum := sha256.Sum256([]byte(verifier))
	derived := base64.RawURLEncoding.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(derived), []byte(challenge)) == 1
}

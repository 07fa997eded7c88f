package pkce

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// RFC 7636 appendix B test vector.
const (
	rfcVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	rfcChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

func TestVerify_S256(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Verify("S256", rfcVerifier, rfcChallenge))
}

func TestVerify_S256_Mismatch(t *testing.T) {
	r := NewRegistry()

	other := strings.Repeat("a", 43)
	require.ErrorIs(t, r.Verify("S256", other, rfcChallenge), ErrVerifierMismatch)
}

func TestVerify_Plain(t *testing.T) {
	r := NewRegistry()
	verifier := strings.Repeat("b", 50)

	require.NoError(t, r.Verify("plain", verifier, verifier))
	require.ErrorIs(t, r.Verify("plain", verifier, "different-challenge-value-padded-to-length-43x"), ErrVerifierMismatch)
}

func TestVerify_UnsupportedMethod(t *testing.T) {
	r := NewRegistry()

	require.ErrorIs(t, r.Verify("S512", rfcVerifier, rfcChallenge), ErrUnsupportedMethod)
	require.ErrorIs(t, r.Verify("", rfcVerifier, rfcChallenge), ErrUnsupportedMethod)
}

func TestVerify_VerifierFormat(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name     string
		verifier string
	}{
		{"too short", strings.Repeat("a", 42)},
		{"too long", strings.Repeat("a", 129)},
		{"illegal characters", strings.Repeat("a", 42) + "!"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Verify("plain", tt.verifier, tt.verifier)
			require.ErrorIs(t, err, ErrVerifierFormat)
		})
	}

	// boundary lengths are accepted
	for _, n := range []int{43, 128} {
		v := strings.Repeat("a", n)
		require.NoError(t, r.Verify("plain", v, v))
	}
}

func TestVerify_CustomMethod(t *testing.T) {
	r := NewRegistry()
	r.Add(reverseVerifier{})

	require.True(t, r.Supports("reverse"))

	verifier := strings.Repeat("ab", 22)
	challenge := reverse(verifier)
	require.NoError(t, r.Verify("reverse", verifier, challenge))
}

func TestMethods(t *testing.T) {
	r := NewRegistry()
	require.ElementsMatch(t, []string{"plain", "S256"}, r.Methods())
}

func TestS256_DerivationMatchesSpec(t *testing.T) {
	sum := sha256.Sum256([]byte(rfcVerifier))
	require.Equal(t, rfcChallenge, base64.RawURLEncoding.EncodeToString(sum[:]))
}

type reverseVerifier struct{}

func (reverseVerifier) Method() string { return "reverse" }

func (reverseVerifier) Verify(verifier, challenge string) bool {
	return reverse(verifier) == challenge
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

package totp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 6238 appendix B test secret ("12345678901234567890" in base32).
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestVerifyAtAcceptsCurrentStep(t *testing.T) {
	at := time.Unix(1111111109, 0)
	code, err := GenerateAt(rfcSecret, at)
	require.NoError(t, err)
	require.Len(t, code, Digits)

	assert.True(t, VerifyAt(rfcSecret, code, at))
}

func TestVerifyAtAcceptsAdjacentSteps(t *testing.T) {
	at := time.Unix(1111111109, 0)
	code, err := GenerateAt(rfcSecret, at)
	require.NoError(t, err)

	assert.True(t, VerifyAt(rfcSecret, code, at.Add(Step)), "one step of drift forward")
	assert.True(t, VerifyAt(rfcSecret, code, at.Add(-Step)), "one step of drift backward")
	assert.False(t, VerifyAt(rfcSecret, code, at.Add(2*Step)), "two steps is outside the window")
}

func TestVerifyAtRejectsWrongCode(t *testing.T) {
	at := time.Unix(1111111109, 0)
	assert.False(t, VerifyAt(rfcSecret, "000000", at))
	assert.False(t, VerifyAt(rfcSecret, "12345", at), "short code")
	assert.False(t, VerifyAt(rfcSecret, "1234567", at), "long code")
}

func TestVerifyBadSecret(t *testing.T) {
	assert.False(t, VerifyAt("not!base32", "123456", time.Now()))
}

func TestVerifySecretNormalization(t *testing.T) {
	at := time.Unix(1111111109, 0)
	code, err := GenerateAt(rfcSecret, at)
	require.NoError(t, err)

	spaced := "gezd gnbv gy3t qojq gezd gnbv gy3t qojq"
	assert.True(t, VerifyAt(spaced, code, at))
}

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRotationErrorMessage(t *testing.T) {
	t.Parallel()

	err := Rotation(CodeTokenRotationFailed, "marketplace", "upstream said %q", "invalid_grant")
	assert.Equal(t, `TOKEN_ROTATION_FAILED: upstream said "invalid_grant" (provider marketplace)`, err.Error())
}

func TestRotationErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("connection refused")
	err := &RotationError{Code: CodeTokenRotationFailed, Message: "exchange failed", Err: cause}
	assert.ErrorIs(t, err, cause)
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CodeInitialTokenExpired, CodeOf(Rotation(CodeInitialTokenExpired, "p", "expired")))
	assert.Equal(t, CodeProcessingError, CodeOf(fmt.Errorf("plain error")))

	wrapped := fmt.Errorf("while rotating: %w", Rotation(CodeInvalidTokenResponse, "p", "no access token"))
	assert.Equal(t, CodeInvalidTokenResponse, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodeInvalidTokenResponse))
}

func TestConfigError(t *testing.T) {
	t.Parallel()

	err := ConfigError{
		Field:      "providers.marketplace.tokenURL",
		Message:    "must be an absolute URL",
		Suggestion: "set the provider token endpoint in providers.yaml",
	}
	assert.Contains(t, err.Error(), "providers.marketplace.tokenURL")
	assert.Contains(t, err.Error(), "must be an absolute URL")
}

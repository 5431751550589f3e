package logging

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false)

	logger.Info("server listening on %s", ":8080")
	logger.Warn("rotation behind schedule for %s", "marketplace")
	logger.Error("rotation failed: %v", "boom")
	logger.Debug("this should not appear")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "server listening on :8080")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "ERROR")
	assert.NotContains(t, out, "this should not appear")
}

func TestLoggerDebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true)

	logger.Debug("tick for provider %s", "marketplace")
	assert.Contains(t, buf.String(), "tick for provider marketplace")
}

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	s := Secret("super-secret-token")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
}

func TestRedact(t *testing.T) {
	t.Parallel()

	out := Redact("Authorization: Bearer abc123def", []string{"abc123def"})
	assert.Equal(t, "Authorization: Bearer [REDACTED]", out)

	// Trivially short values are left alone to avoid mangling log text.
	out = Redact("value is ab", []string{"ab"})
	assert.True(t, strings.Contains(out, "ab"))
}

package secure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferRoundTrip(t *testing.T) {
	b := NewBuffer("client-secret-1")
	got, err := b.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "client-secret-1", got)

	// Reveal is repeatable; the enclave survives opening.
	got, err = b.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "client-secret-1", got)
}

func TestBufferReplace(t *testing.T) {
	b := NewBuffer("old")
	b.Replace("new")

	got, err := b.Reveal()
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestEmptyBuffer(t *testing.T) {
	var cases = []*Buffer{NewBuffer(""), {}}
	for _, b := range cases {
		got, err := b.Reveal()
		require.NoError(t, err)
		assert.Equal(t, "", got)
	}
}

// Package secure keeps long-lived credentials encrypted at rest in process
// memory. Client secrets and initial refresh tokens live for the whole
// process; wrapping them in a memguard enclave keeps the plaintext out of
// heap dumps and swap except for the brief window a rotation request is
// being rendered.
package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// Buffer holds one sensitive string inside a memguard enclave. The zero
// Buffer is empty; Reveal on it returns "".
type Buffer struct {
	mu      sync.RWMutex
	enclave *memguard.Enclave
}

// NewBuffer seals value into a protected buffer. The caller keeps no
// obligation to zero its copy, but should drop it promptly.
func NewBuffer(value string) *Buffer {
	b := &Buffer{}
	if value != "" {
		b.enclave = memguard.NewEnclave([]byte(value))
	}
	return b
}

// Reveal decrypts and returns the held value. The plaintext locked buffer is
// wiped before returning; the returned string is an ordinary Go string and
// must not be logged.
func (b *Buffer) Reveal() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.enclave == nil {
		return "", nil
	}
	locked, err := b.enclave.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()
	return string(locked.Bytes()), nil
}

// Replace seals a new value, discarding the previous one. Used when a secret
// rotation cycle hands back a fresh client secret.
func (b *Buffer) Replace(value string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if value == "" {
		b.enclave = nil
		return
	}
	b.enclave = memguard.NewEnclave([]byte(value))
}

// Purge wipes all memguard-managed memory. Call once at process exit.
func Purge() {
	memguard.Purge()
}

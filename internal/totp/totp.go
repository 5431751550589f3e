// Package totp implements RFC 6238 time-based one-time password
// verification for the admin two-factor check.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

const (
	// Digits is the code length.
	Digits = 6
	// Step is the time step per RFC 6238.
	Step = 30 * time.Second
	// Window is how many adjacent steps are accepted on either side of
	// the current one, absorbing clock drift between server and
	// authenticator.
	Window = 1
)

// Verify checks a presented code against the base32-encoded shared secret,
// accepting the current time step plus Window steps on either side. It
// never reveals through errors whether the code or the secret was at
// fault; any failure is a plain false.
func Verify(secret, code string) bool {
	return VerifyAt(secret, code, time.Now())
}

// VerifyAt is Verify against an explicit reference time. Used in tests.
func VerifyAt(secret, code string, at time.Time) bool {
	key, err := decodeSecret(secret)
	if err != nil {
		return false
	}
	if len(code) != Digits {
		return false
	}

	counter := uint64(at.Unix()) / uint64(Step/time.Second)
	for offset := -Window; offset <= Window; offset++ {
		expected := hotp(key, counter+uint64(int64(offset)))
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true
		}
	}
	return false
}

// GenerateAt produces the code for a given time. Exported for test setups
// that need a currently valid code.
func GenerateAt(secret string, at time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	counter := uint64(at.Unix()) / uint64(Step/time.Second)
	return hotp(key, counter), nil
}

func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.TrimRight(normalized, "="))
}

// hotp is RFC 4226 with HMAC-SHA1 and dynamic truncation.
func hotp(key []byte, counter uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	return fmt.Sprintf("%0*d", Digits, value%1000000)
}

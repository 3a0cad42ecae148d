package util

import (
	"io"
	"math/rand"
	"time"
)

// TrimHex removes the "0x" or "0X" prefix of s, if any.
func TrimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

var randReader = rand.New(rand.NewSource(time.Now().UnixNano()))

// RandomBytes returns n pseudo-random bytes. Not suitable for secrets.
func RandomBytes(n int) []byte {
	bytes := make([]byte, n)
	if _, err := io.ReadFull(randReader, bytes); err != nil {
		panic(err)
	}
	return bytes
}

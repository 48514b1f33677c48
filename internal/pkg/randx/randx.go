// Package randx generates throwaway credentials for admin-created accounts.
package randx

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const (
	UsernamePrefix = "user_"
	usernameLength = 6
	passwordLength = 12
)

// String returns n characters drawn uniformly from the base62 alphabet.
func String(n int) string {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		buf[i] = alphabet[idx.Int64()]
	}
	return string(buf)
}

// Username returns a name of the form user_xxxxxx.
func Username() string {
	return UsernamePrefix + String(usernameLength)
}

// Password returns a 12 character base62 password.
func Password() string {
	return String(passwordLength)
}

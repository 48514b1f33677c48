package randx

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsername(t *testing.T) {
	re := regexp.MustCompile(`^user_[0-9A-Za-z]{6}$`)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, re, Username())
	}
}

func TestPassword(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		p := Password()
		assert.Len(t, p, 12)
		seen[p] = struct{}{}
	}
	assert.Greater(t, len(seen), 45)
}

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashToken(t *testing.T) {
	assert.Len(t, HashToken("secret"), 64)
	assert.Equal(t, HashToken("secret"), HashToken("secret"))
	assert.NotEqual(t, HashToken("secret"), HashToken("Secret"))
}

func TestTokenMatches(t *testing.T) {
	assert.True(t, TokenMatches("dev-token", "dev-token"))
	assert.False(t, TokenMatches("dev-token", "other"))
	assert.False(t, TokenMatches("", ""))
}

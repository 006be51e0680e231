package jwt

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignParseRoundTrip(t *testing.T) {
	token, err := Sign("u1", "a@b.c", "creator", "t1", time.Hour)
	require.NoError(t, err)

	claims, err := Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "a@b.c", claims.Email)
	assert.Equal(t, "creator", claims.Role)
	assert.Equal(t, "t1", claims.TenantID)
}

func TestParseRejectsExpired(t *testing.T) {
	token, err := Sign("u1", "", "", "", -time.Minute)
	require.NoError(t, err)

	_, err = Parse(token)
	assert.Error(t, err)
}

func TestParseRejectsTampered(t *testing.T) {
	token, err := Sign("u1", "", "", "", time.Hour)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	_, err = Parse(tampered)
	assert.Error(t, err)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not.a.token")
	assert.Error(t, err)
	_, err = Parse("")
	assert.Error(t, err)
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	tok, err := SignJWT(42, "secret", time.Hour)
	require.NoError(t, err)

	uid, err := ParseJWT(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)

	_, err = ParseJWT(tok, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTExpired(t *testing.T) {
	tok, err := SignJWT(1, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(tok, "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.True(t, CheckPassword(h, "hunter2"))
	assert.False(t, CheckPassword(h, "hunter3"))
}

func TestBearerIdentity(t *testing.T) {
	ctx := context.Background()

	_, err := BearerIdentity{}.SessionToken(ctx)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	id := BearerIdentity{Token: "abc", Creds: Credentials{AccessKeyID: "k"}}
	tok, err := id.SessionToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	creds, err := id.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "k", creds.AccessKeyID)

	expired := BearerIdentity{Token: "abc", Creds: Credentials{Expires: time.Now().Add(-time.Second)}}
	_, err = expired.Credentials(ctx)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

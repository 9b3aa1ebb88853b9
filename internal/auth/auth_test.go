package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automedic-booking/internal/model"
)

func TestTokenRoundTrip(t *testing.T) {
	who := model.Identity{UserID: "u1", Email: "a@example.com", Name: "Ada"}
	tok, err := MakeToken(who, "secret")
	require.NoError(t, err)

	c, err := ParseToken(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, who, c.Identity())
}

func TestParseTokenRejects(t *testing.T) {
	good, err := MakeToken(model.Identity{UserID: "u1"}, "secret")
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		raw    string
		secret string
	}{
		{"wrong secret", good, "other"},
		{"expired", expired, "secret"},
		{"no user", noUser, "secret"},
		{"alg none", none, "secret"},
		{"garbage", "not.a.jwt", "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.raw, tt.secret)
			assert.Error(t, err)
		})
	}
}

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"automedic-booking/internal/model"
)

var ErrBadToken = errors.New("invalid token")

const tokenTTL = 15 * time.Minute

type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() model.Identity {
	return model.Identity{UserID: c.UserID, Email: c.Email, Name: c.Name}
}

// short-lived access token (15 min)
func MakeToken(who model.Identity, secret string) (string, error) {
	now := time.Now()
	c := Claims{
		UserID: who.UserID,
		Email:  who.Email,
		Name:   who.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func ParseToken(raw, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.UserID == "" {
		return nil, ErrBadToken
	}
	return c, nil
}

// Package authtoken mints HS256 access tokens in the shape JWTAuth
// accepts.  Production tokens come from the external identity service;
// this exists for local runs, the CLI's token command and tests.
package authtoken

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed token and its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// Issue signs a token for userID with the given role, valid for ttl from
// now.  sub carries the user id as decimal text.
func Issue(secret string, userID uint64, role string, ttl time.Duration, now time.Time) (AccessToken, error) {
	if secret == "" {
		return AccessToken{}, errors.New("authtoken: empty secret")
	}
	if userID == 0 {
		return AccessToken{}, errors.New("authtoken: user id must be positive")
	}
	now = now.UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(userID, 10),
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

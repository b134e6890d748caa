package utils // package utils provides helpers for issuing access tokens

import (
    "errors"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// NewAccessToken signs an HS256 JWT whose subject is userID. Tokens are
// normally issued by the identity service in front of this one; the helper
// exists for tooling and tests that need a valid bearer token.
func NewAccessToken(secret, userID, role string, ttl time.Duration) (AccessToken, error) {
    if userID == "" {
        return AccessToken{}, errors.New("empty user id")
    }
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub":  userID,
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

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the signed structure presented as the bearer token. The jti
// registered claim carries the token's lookup key; exp, when set, is an
// attenuation checked at parse time without any server-side state. Further
// caveats extend this struct.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func NewSignedToken(secret, issuer string, ttl time.Duration, userID, tokenID string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			Issuer:   issuer,
			ID:       tokenID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseSignedToken(secret, value string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(value, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

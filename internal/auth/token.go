// Package auth parses the HMAC-signed identity tokens minted by the external
// auth layer. The signaling server only checks the signature and lifts the
// sub/name claims; it never re-validates identity beyond that.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"

	"github.com/visign/signaling/internal/domain"
)

func Parse(secret, tokenStr string) (domain.Identity, error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("parse identity token: %w", err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return domain.Identity{}, fmt.Errorf("invalid identity token")
	}
	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	return domain.NewIdentity(sub, name)
}

// Issue signs a guest identity token. Used by the dev-mode token endpoint;
// production deployments mint tokens in the auth service instead.
func Issue(secret string, id domain.Identity, ttl time.Duration) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  string(id.UserID),
		"name": id.DisplayName,
		"exp":  time.Now().Add(ttl).Unix(),
	})
	return tok.SignedString([]byte(secret))
}

// Package signer mints the RS256 bearer JWTs a supervisor presents to the
// API server (spec.md §6.2/§6.5): sub = supervisor name, aud = "api-root",
// exp <= 1h. This is the one piece of the JWT/HTTP surface spec.md §9
// calls out as required: sign_rs256(claims, pem) -> token.
package signer

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the minimal claim set spec.md §6.2 mandates for a
// supervisor-to-API token.
type Claims struct {
	Subject   string        // sub: supervisor name
	Audience  string        // aud: "api-root"
	KeyID     string        // kid, from TOY_API_CLIENT_KID
	ExpiresIn time.Duration // must be <= 1h
}

// LoadRSAPrivateKey parses a PEM-encoded RSA private key, as pointed to by
// TOY_API_CLIENT_CREDENTIAL (spec.md §6.5).
func LoadRSAPrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("signer: parse RSA private key: %w", err)
	}
	return key, nil
}

// SignRS256 mints a bearer token for the given claims, signed with key.
func SignRS256(claims Claims, key *rsa.PrivateKey) (string, error) {
	if claims.ExpiresIn <= 0 || claims.ExpiresIn > time.Hour {
		return "", fmt.Errorf("signer: exp must be in (0, 1h], got %s", claims.ExpiresIn)
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": claims.Subject,
		"aud": claims.Audience,
		"iat": now.Unix(),
		"exp": now.Add(claims.ExpiresIn).Unix(),
	})
	token.Header["kid"] = claims.KeyID

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signer: sign: %w", err)
	}
	return signed, nil
}

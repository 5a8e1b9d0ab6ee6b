package publish

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken mints the HS256 token the room relay requires to join and
// publish. Claims follow the usual conferencing-grant shape: the API key as
// issuer, the participant identity as subject, and a room grant.
func AccessToken(apiKey, secret, room, identity string, ttl time.Duration) (string, error) {
	if apiKey == "" || secret == "" {
		return "", fmt.Errorf("relay credentials not configured")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": apiKey,
		"sub": identity,
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"video": map[string]any{
			"room":       room,
			"roomJoin":   true,
			"canPublish": true,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

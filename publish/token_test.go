package publish

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessToken(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		if _, err := AccessToken("", "secret", "room", "dj", time.Hour); err == nil {
			t.Error("expected an error without an api key")
		}
		if _, err := AccessToken("key", "", "room", "dj", time.Hour); err == nil {
			t.Error("expected an error without a secret")
		}
	})

	t.Run("claims", func(t *testing.T) {
		signed, err := AccessToken("api-key", "api-secret", "listening-room", "dj-1234", time.Hour)
		if err != nil {
			t.Fatal(err)
		}

		token, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
			return []byte("api-secret"), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			t.Fatal(err)
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			t.Fatalf("unexpected claims type %T", token.Claims)
		}

		if claims["iss"] != "api-key" {
			t.Errorf("iss = %v", claims["iss"])
		}
		if claims["sub"] != "dj-1234" {
			t.Errorf("sub = %v", claims["sub"])
		}

		video, ok := claims["video"].(map[string]any)
		if !ok {
			t.Fatalf("video grant missing: %v", claims)
		}
		if video["room"] != "listening-room" || video["roomJoin"] != true || video["canPublish"] != true {
			t.Errorf("unexpected grant: %v", video)
		}

		exp, err := claims.GetExpirationTime()
		if err != nil {
			t.Fatal(err)
		}
		if !exp.After(time.Now().Add(30 * time.Minute)) {
			t.Errorf("expiry too soon: %v", exp)
		}
	})

	t.Run("wrong secret rejected", func(t *testing.T) {
		signed, err := AccessToken("api-key", "api-secret", "room", "dj", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
			return []byte("other-secret"), nil
		}); err == nil {
			t.Error("expected verification failure")
		}
	})
}

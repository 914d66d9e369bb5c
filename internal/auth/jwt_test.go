package auth

import (
	"testing"
	"time"

	"enchiridion/config"
)

func testConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret: "test-secret",
		AccessExpiry: time.Hour,
		ActionExpiry: time.Hour,
		Issuer:       "test",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	cfg := testConfig()
	tok, err := GenerateAccessToken(cfg, "p-1", "ada@example.com", true)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseAccessToken(cfg, tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.PartnerID != "p-1" || claims.Email != "ada@example.com" || !claims.Superuser {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > time.Hour || ttl < 59*time.Minute {
		t.Errorf("expiry %v, want about one hour", ttl)
	}
}

func TestParseRejects(t *testing.T) {
	cfg := testConfig()
	other := testConfig()
	other.AccessSecret = "other"
	foreign, _ := GenerateAccessToken(other, "p-1", "a@b.c", false)

	expiredCfg := testConfig()
	expiredCfg.AccessExpiry = -time.Minute
	expired, _ := GenerateAccessToken(expiredCfg, "p-1", "a@b.c", false)

	reset, _ := GenerateActionToken(cfg, AudienceReset, "p-1", "a@b.c")

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", foreign},
		{"expired", expired},
		{"action token used as session", reset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAccessToken(cfg, tt.token); err != ErrInvalidToken {
				t.Errorf("got %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestActionTokenAudience(t *testing.T) {
	cfg := testConfig()
	tok, err := GenerateActionToken(cfg, AudienceVerify, "p-2", "b@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseActionToken(cfg, AudienceReset, tok); err == nil {
		t.Error("verify token accepted as reset token")
	}
	claims, err := ParseActionToken(cfg, AudienceVerify, tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Email != "b@example.com" {
		t.Errorf("email = %q", claims.Email)
	}
}

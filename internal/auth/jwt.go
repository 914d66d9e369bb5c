package auth

import (
	"errors"
	"time"

	"enchiridion/config"

	"github.com/golang-jwt/jwt/v5"
)

// Audiences for single-purpose tokens mailed to the partner.
const (
	AudienceReset  = "enchiridion:reset"
	AudienceVerify = "enchiridion:verify"
)

type Claims struct {
	PartnerID string `json:"partner_id"`
	Email     string `json:"email"`
	Superuser bool   `json:"is_superuser"`
	jwt.RegisteredClaims
}

func GenerateAccessToken(cfg *config.JWTConfig, partnerID, email string, superuser bool) (string, error) {
	claims := Claims{
		PartnerID: partnerID,
		Email:     email,
		Superuser: superuser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   partnerID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.AccessSecret))
}

// GenerateActionToken issues a password-reset or verification token bound to one audience.
func GenerateActionToken(cfg *config.JWTConfig, audience, partnerID, email string) (string, error) {
	claims := Claims{
		PartnerID: partnerID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   partnerID,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(cfg.ActionExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    cfg.Issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.AccessSecret))
}

var ErrInvalidToken = errors.New("invalid token")

func ParseAccessToken(cfg *config.JWTConfig, tokenString string) (*Claims, error) {
	claims, err := parse(cfg, tokenString)
	if err != nil {
		return nil, err
	}
	// Action tokens share the secret; they must not open a session.
	if len(claims.Audience) > 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func ParseActionToken(cfg *config.JWTConfig, audience, tokenString string) (*Claims, error) {
	return parse(cfg, tokenString, jwt.WithAudience(audience))
}

func parse(cfg *config.JWTConfig, tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.AccessSecret), nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tradexpert/whatsnew-admin/internal/config"
)

// ServiceSubject identifies the admin BFF to the upstream API.
const ServiceSubject = "whatsnew-admin"

// GenerateServiceToken creates a signed HS256 token the upstream client sends
// as its bearer credential.
func GenerateServiceToken(cfg config.UpstreamConfig, now time.Time) (string, error) {
	if cfg.JWTSecret == "" {
		return "", errors.New("upstream jwt secret not configured")
	}
	ttl := cfg.JWTTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	claims := jwt.MapClaims{
		"sub":   ServiceSubject,
		"scope": "whatsnew:admin",
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWTSecret))
}

package oidc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tradexpert/whatsnew-admin/pkg/middleware"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
)

// payloadToken hands out the decoded JWT payload as-is.
type payloadToken json.RawMessage

func (t payloadToken) Claims(v interface{}) error {
	return json.Unmarshal(t, v)
}

// InsecureVerifier accepts any well-formed JWT without checking its signature
// or issuer. It still requires a subject and honours exp, so draft ownership
// and expiry behave as with Keycloak. Only enabled by ALLOW_INSECURE_TOKEN=true.
type InsecureVerifier struct {
	now func() time.Time
}

func NewInsecureVerifier() *InsecureVerifier { return &InsecureVerifier{now: time.Now} }

func (v *InsecureVerifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: want 3 segments, got %d", ErrMalformedToken, len(parts))
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedToken, err)
	}
	var std struct {
		Subject string   `json:"sub"`
		Expiry  *float64 `json:"exp"`
	}
	if err := json.Unmarshal(data, &std); err != nil {
		return nil, fmt.Errorf("%w: claims: %v", ErrMalformedToken, err)
	}
	if std.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrMalformedToken)
	}
	if std.Expiry != nil && v.now().After(time.Unix(int64(*std.Expiry), 0)) {
		return nil, ErrTokenExpired
	}
	return payloadToken(data), nil
}

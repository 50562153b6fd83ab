package oidc

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradexpert/whatsnew-admin/internal/config"
)

func TestInsecureVerifier_ParsesClaims(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"editor-1","realm_access":{"roles":["whatsnew-admin"]}}`))
	tok, err := NewInsecureVerifier().Verify(context.Background(), "e30."+payload+".sig")
	require.NoError(t, err)

	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	assert.Equal(t, "editor-1", claims["sub"])
}

func TestInsecureVerifier_RejectsGarbage(t *testing.T) {
	_, err := NewInsecureVerifier().Verify(context.Background(), "nodots")
	assert.ErrorIs(t, err, ErrMalformedToken)
	_, err = NewInsecureVerifier().Verify(context.Background(), "a.!!!.c")
	assert.ErrorIs(t, err, ErrMalformedToken)

	noSub := base64.RawURLEncoding.EncodeToString([]byte(`{"name":"x"}`))
	_, err = NewInsecureVerifier().Verify(context.Background(), "e30."+noSub+".sig")
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestInsecureVerifier_Expiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := &InsecureVerifier{now: func() time.Time { return now }}
	token := func(exp int64) string {
		return "e30." + base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"sub":"u1","exp":%d}`, exp))) + ".sig"
	}

	_, err := v.Verify(context.Background(), token(now.Add(time.Minute).Unix()))
	assert.NoError(t, err)
	_, err = v.Verify(context.Background(), token(now.Add(-time.Minute).Unix()))
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestFromConfig(t *testing.T) {
	_, err := FromConfig(context.Background(), config.KeycloakConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	ver, err := FromConfig(context.Background(), config.KeycloakConfig{AllowInsecure: true})
	require.NoError(t, err)
	assert.IsType(t, &InsecureVerifier{}, ver)
}

func TestIssuer(t *testing.T) {
	assert.Equal(t, "https://kc.test/realms/tradexpert", config.KeycloakConfig{URL: "https://kc.test/", Realm: "tradexpert"}.Issuer())
	assert.Equal(t, "https://kc.test/realms/x", config.KeycloakConfig{URL: "https://kc.test/realms/x"}.Issuer())
}

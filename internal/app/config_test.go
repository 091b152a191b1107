package app

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgergate/ledgergate/internal/budget"
)

func setBaseEnv(t *testing.T) ed25519.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	t.Setenv("TOKEN_ISSUER", "https://idp.example.com/realms/corp")
	t.Setenv("TOKEN_PUBLIC_KEY", base64.StdEncoding.EncodeToString(pub))
	return pub
}

func TestLoadConfigDefaults(t *testing.T) {
	pub := setBaseEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, budget.AmendRetain, cfg.AmendPolicy())

	key, err := cfg.PublicKey()
	require.NoError(t, err)
	require.Equal(t, pub, key)
}

func TestLoadConfigRejectsBadKey(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("TOKEN_PUBLIC_KEY", base64.StdEncoding.EncodeToString([]byte("short")))

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsUnknownAmendPolicy(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BUDGET_AMEND_POLICY", "discard")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRedraftPolicy(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("BUDGET_AMEND_POLICY", "redraft")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, budget.AmendRedraft, cfg.AmendPolicy())
}

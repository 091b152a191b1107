package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ledgergate/ledgergate/internal/shared"
)

const (
	testAudience = "ledgergate"
	testIssuer   = "https://idp.example.com/realms/corp"
)

type tokenOverrides struct {
	audience string
	issuer   string
	expiry   time.Time
	tokenID  string
	subject  string
}

func signToken(t *testing.T, key ed25519.PrivateKey, roles []string, dept string, ov tokenOverrides) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: key}, nil)
	require.NoError(t, err)
	claims := tokenClaims{
		Claims: jwt.Claims{
			Issuer:   testIssuer,
			Subject:  "u-100",
			Audience: jwt.Audience{testAudience},
			Expiry:   jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt: jwt.NewNumericDate(time.Now()),
			ID:       uuid.NewString(),
		},
		Roles:      roles,
		Department: dept,
	}
	if ov.audience != "" {
		claims.Audience = jwt.Audience{ov.audience}
	}
	if ov.issuer != "" {
		claims.Issuer = ov.issuer
	}
	if !ov.expiry.IsZero() {
		claims.Expiry = jwt.NewNumericDate(ov.expiry)
	}
	if ov.tokenID != "" {
		claims.ID = ov.tokenID
	}
	if ov.subject != "" {
		claims.Subject = ov.subject
	}
	raw, err := jwt.Signed(signer).Claims(claims).Serialize()
	require.NoError(t, err)
	return raw
}

func newTestValidator(t *testing.T) (*Validator, ed25519.PrivateKey, *RevocationStore) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRevocationStore(client, 0)
	v := NewValidator(ValidatorConfig{PublicKey: pub, Audience: testAudience, Issuer: testIssuer}, store, nil)
	return v, priv, store
}

func TestValidateProducesExpandedPrincipal(t *testing.T) {
	v, priv, _ := newTestValidator(t)
	raw := signToken(t, priv, []string{"executive"}, "corporate", tokenOverrides{})

	p, err := v.Validate(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, "u-100", p.ID)
	require.Equal(t, "corporate", p.Department)
	require.True(t, p.Roles.Has("executive"))
	require.True(t, p.Roles.Has("finance-read"), "composite expansion must include implied read roles")
	require.True(t, p.Roles.Has("budget-approve"))
	require.NotEmpty(t, p.TokenID)
	require.NotEmpty(t, p.TokenPrint)
}

func TestValidateRejectsWrongKey(t *testing.T) {
	v, _, _ := newTestValidator(t)
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	raw := signToken(t, otherPriv, []string{"hr-read"}, "hr", tokenOverrides{})

	_, err = v.Validate(context.Background(), raw)
	require.ErrorIs(t, err, shared.ErrInvalidSignature)
}

func TestValidateRejectsGarbage(t *testing.T) {
	v, _, _ := newTestValidator(t)
	_, err := v.Validate(context.Background(), "not.a.token")
	require.ErrorIs(t, err, shared.ErrAuthentication)
}

func TestValidateRejectsExpired(t *testing.T) {
	v, priv, _ := newTestValidator(t)
	raw := signToken(t, priv, []string{"hr-read"}, "hr", tokenOverrides{expiry: time.Now().Add(-time.Hour)})

	_, err := v.Validate(context.Background(), raw)
	require.ErrorIs(t, err, shared.ErrTokenExpired)
}

func TestValidateRejectsBadAudience(t *testing.T) {
	v, priv, _ := newTestValidator(t)
	raw := signToken(t, priv, []string{"hr-read"}, "hr", tokenOverrides{audience: "other-service"})

	_, err := v.Validate(context.Background(), raw)
	require.ErrorIs(t, err, shared.ErrBadAudience)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	v, priv, _ := newTestValidator(t)
	raw := signToken(t, priv, []string{"hr-read"}, "hr", tokenOverrides{issuer: "https://rogue.example.com"})

	_, err := v.Validate(context.Background(), raw)
	require.ErrorIs(t, err, shared.ErrAuthentication)
	require.NotErrorIs(t, err, shared.ErrBadAudience)
}

func TestValidateRejectsRevoked(t *testing.T) {
	v, priv, store := newTestValidator(t)
	tokenID := uuid.NewString()
	raw := signToken(t, priv, []string{"hr-read"}, "hr", tokenOverrides{tokenID: tokenID})

	require.NoError(t, store.Revoke(context.Background(), tokenID, time.Hour))
	_, err := v.Validate(context.Background(), raw)
	require.ErrorIs(t, err, shared.ErrTokenRevoked)
}

func TestValidateRequiresSubjectAndTokenID(t *testing.T) {
	v, priv, _ := newTestValidator(t)

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: priv}, nil)
	require.NoError(t, err)
	claims := tokenClaims{Claims: jwt.Claims{
		Issuer:   testIssuer,
		Audience: jwt.Audience{testAudience},
		Expiry:   jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	raw, err := jwt.Signed(signer).Claims(claims).Serialize()
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), raw)
	require.ErrorIs(t, err, shared.ErrAuthentication)
}

func TestFingerprintStableAndOpaque(t *testing.T) {
	a := Fingerprint("token-a")
	b := Fingerprint("token-a")
	c := Fingerprint("token-b")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 16)
}

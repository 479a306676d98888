package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://accounts.test"

func newSigner(t *testing.T, kid string) *jwtx.EdDSASigner {
	t.Helper()
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	require.NoError(t, err)
	return signer
}

func TestSignAndVerify(t *testing.T) {
	signer := newSigner(t, "k1")
	require.Equal(t, "EdDSA", signer.Alg())

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	claims := jwtx.NewSessionClaims(jwtx.SessionParams{
		Subject:        "us_1",
		SessionID:      "se_1",
		TenantID:       "default",
		PlatformAccess: true,
		Issuer:         testIssuer,
		TTL:            5 * time.Minute,
	}, time.Now())

	token, err := signer.Sign(claims)
	require.NoError(t, err)

	got, err := jwtx.NewVerifierEdDSA(keys, testIssuer, nil).Verify(token)
	require.NoError(t, err)
	require.Equal(t, "us_1", got.Subject)
	require.Equal(t, "se_1", got.SID)
	require.Equal(t, "default", got.TenantID)
	require.True(t, got.PlatformAccess)
	require.False(t, got.AccountPortalAccess)
	require.NotEmpty(t, got.ID)
}

func TestVerifyRejects(t *testing.T) {
	signer := newSigner(t, "k1")
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(signer))
	verifier := jwtx.NewVerifierEdDSA(keys, testIssuer, nil)

	params := jwtx.SessionParams{Subject: "us_1", SessionID: "se_1", Issuer: testIssuer, TTL: time.Minute}

	t.Run("wrong issuer", func(t *testing.T) {
		p := params
		p.Issuer = "someone-else"
		token, err := signer.Sign(jwtx.NewSessionClaims(p, time.Now()))
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := signer.Sign(jwtx.NewSessionClaims(params, time.Now().Add(-time.Hour)))
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("unknown kid", func(t *testing.T) {
		other := newSigner(t, "k2")
		token, err := other.Sign(jwtx.NewSessionClaims(params, time.Now()))
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		require.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := verifier.Verify("not.a.jwt")
		require.Error(t, err)
	})

	t.Run("missing session id", func(t *testing.T) {
		p := params
		p.SessionID = ""
		token, err := signer.Sign(jwtx.NewSessionClaims(p, time.Now()))
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

func TestClaimsValidation(t *testing.T) {
	c := &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:   "accounts",
		Audience: []string{"apps", "portal"},
	}}

	require.NoError(t, c.ValidateIssuer(""))
	require.NoError(t, c.ValidateIssuer("accounts"))
	require.ErrorIs(t, c.ValidateIssuer("other"), jwtx.ErrIssuer)

	require.NoError(t, c.ValidateAudience(nil))
	require.NoError(t, c.ValidateAudience([]string{"portal"}))
	require.ErrorIs(t, c.ValidateAudience([]string{"billing"}), jwtx.ErrAudience)

	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-10 * time.Second))
	require.ErrorIs(t, c.ValidateExpiry(), jwtx.ErrExpired)
	require.NoError(t, c.ValidateExpiryWithLeeway(time.Minute))
}

func TestKeySetJWKS(t *testing.T) {
	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddSigner(newSigner(t, "k1")))

	jwks := keys.PublicJWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
	require.Equal(t, "Ed25519", jwks.Keys[0].Crv)
	require.Equal(t, "k1", jwks.Keys[0].Kid)

	_, err := keys.Get("missing")
	require.ErrorIs(t, err, jwtx.ErrNoKey)

	require.Error(t, keys.AddJWK(jwtx.JWK{Kty: "RSA"}))
}

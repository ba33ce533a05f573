package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1697462400000"},
		Username:         "alice",
		Email:            "alice@test.io",
		Role:             "user",
	}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	tok, err := Issue(sampleClaims(), secret, time.Hour)
	require.NoError(t, err)
	require.Len(t, strings.Split(tok, "."), 3)

	got, err := Verify(tok, secret)
	require.NoError(t, err)
	assert.Equal(t, "1697462400000", got.Subject)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "alice@test.io", got.Email)
	assert.Equal(t, "user", got.Role)
	require.NotNil(t, got.IssuedAt)
	require.NotNil(t, got.ExpiresAt)
	assert.Equal(t, time.Hour, got.ExpiresAt.Sub(got.IssuedAt.Time))
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := Issue(sampleClaims(), secret, -1*time.Second)
	require.NoError(t, err)

	_, err = Verify(tok, secret)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := Issue(sampleClaims(), []byte("right-secret"), time.Hour)
	require.NoError(t, err)

	_, err = Verify(tok, []byte("wrong-secret"))
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	for _, raw := range []string{
		"",
		"abc",
		"a.b",
		"a.b.c.d",
		"a..c",
		".b.c",
		"a.b.",
		"not.a.jw!",
	} {
		_, err := Verify(raw, secret)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", raw)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	claims := sampleClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = Verify(tok, secret)
	require.ErrorIs(t, err, ErrBadSignature)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sampleClaims()).SignedString(secret)
	require.NoError(t, err)

	_, err = Verify(tok, secret)
	require.ErrorIs(t, err, ErrMalformed)
}

func flip(c byte) byte {
	if c == 'A' {
		return 'B'
	}
	return 'A'
}

func TestVerify_DetectsTampering(t *testing.T) {
	t.Parallel()

	secret := []byte("tamper-secret")
	tok, err := Issue(sampleClaims(), secret, time.Hour)
	require.NoError(t, err)

	payloadStart := strings.Index(tok, ".") + 1
	for i := payloadStart; i < len(tok); i++ {
		if tok[i] == '.' {
			continue
		}
		b := []byte(tok)
		b[i] = flip(b[i])
		_, err := Verify(string(b), secret)
		require.Error(t, err, "flipped byte at %d was accepted", i)
	}
}

func TestVerify_SignatureCheckedBeforePayload(t *testing.T) {
	t.Parallel()

	secret := []byte("order-secret")
	tok, err := Issue(sampleClaims(), secret, time.Hour)
	require.NoError(t, err)
	parts := strings.Split(tok, ".")

	for _, raw := range []string{
		parts[0] + ".bm90IGpzb24." + parts[2],
		parts[0] + "." + parts[1][:len(parts[1])-2] + "." + parts[2],
		"aaaa.bbbb.cccc",
	} {
		_, err := Verify(raw, secret)
		assert.ErrorIs(t, err, ErrBadSignature, "input %q", raw)
	}
}

func TestIssue_EmptySecret(t *testing.T) {
	t.Parallel()

	_, err := Issue(sampleClaims(), nil, time.Hour)
	require.Error(t, err)
}

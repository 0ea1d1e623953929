package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/promptlyprinted/promptly-backend/pkg/config"
	"github.com/promptlyprinted/promptly-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "promptly-printed", ExpirationMinutes: 30}
}

func TestMintAndParseStaffToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()

	token, err := MintStaffToken(cfg, now, StaffTokenPayload{
		Subject: "staff-1",
		Email:   "ops@promptlyprinted.com",
		Role:    enums.StaffRoleAdmin,
	})
	require.NoError(t, err)

	claims, err := ParseStaffToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, "staff-1", claims.Subject)
	require.Equal(t, enums.StaffRoleAdmin, claims.Role)
	require.Equal(t, cfg.Issuer, claims.Issuer)
	require.NotEmpty(t, claims.ID)
}

func TestParseStaffTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintStaffToken(cfg, time.Now().Add(-2*time.Hour), StaffTokenPayload{Subject: "s", Role: enums.StaffRoleSupport})
	require.NoError(t, err)

	_, err = ParseStaffToken(cfg, token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseStaffTokenRejectsWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintStaffToken(cfg, time.Now(), StaffTokenPayload{Subject: "s", Role: enums.StaffRoleAdmin})
	require.NoError(t, err)

	other := cfg
	other.Issuer = "someone-else"
	_, err = ParseStaffToken(other, token)
	require.Error(t, err)
}

func TestMintStaffTokenValidatesPayload(t *testing.T) {
	cfg := testJWTConfig()
	_, err := MintStaffToken(cfg, time.Now(), StaffTokenPayload{Subject: "s", Role: "owner"})
	require.Error(t, err)
	_, err = MintStaffToken(cfg, time.Now(), StaffTokenPayload{Role: enums.StaffRoleAdmin})
	require.Error(t, err)
	_, err = MintStaffToken(config.JWTConfig{}, time.Now(), StaffTokenPayload{Subject: "s", Role: enums.StaffRoleAdmin})
	require.Error(t, err)
}

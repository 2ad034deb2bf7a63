package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campusdesk/campusdesk-backend/pkg/config"
	"github.com/campusdesk/campusdesk-backend/pkg/enums"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "campusdesk",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	userID := uuid.New()

	payload := AccessTokenPayload{
		UserID:   userID,
		MemberID: "S2021001",
		Role:     enums.UserRoleStudent,
		Verified: true,
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.MemberID != "S2021001" {
		t.Fatalf("unexpected member_id %s", claims.MemberID)
	}
	if claims.Role != enums.UserRoleStudent {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if !claims.Verified {
		t.Fatalf("expected verified claim")
	}
	if claims.ID == "" {
		t.Fatalf("expected a generated jti")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "campusdesk", ExpirationMinutes: 30}
	now := time.Now().UTC()

	cases := []struct {
		name    string
		mutate  func(*config.JWTConfig, *AccessTokenPayload)
		message string
	}{
		{
			name:    "missing secret",
			mutate:  func(c *config.JWTConfig, _ *AccessTokenPayload) { c.Secret = "" },
			message: "secret",
		},
		{
			name:    "missing issuer",
			mutate:  func(c *config.JWTConfig, _ *AccessTokenPayload) { c.Issuer = "" },
			message: "issuer",
		},
		{
			name:    "invalid role",
			mutate:  func(_ *config.JWTConfig, p *AccessTokenPayload) { p.Role = enums.UserRole("superuser") },
			message: "role",
		},
		{
			name:    "missing member id",
			mutate:  func(_ *config.JWTConfig, p *AccessTokenPayload) { p.MemberID = " " },
			message: "member id",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfgCopy := cfg
			payload := AccessTokenPayload{
				UserID:   uuid.New(),
				MemberID: "S2021001",
				Role:     enums.UserRoleStudent,
			}
			tc.mutate(&cfgCopy, &payload)
			_, err := MintAccessToken(cfgCopy, now, payload)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.message) {
				t.Fatalf("expected error mentioning %q, got %v", tc.message, err)
			}
		})
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	mintCfg := config.JWTConfig{Secret: "secret", Issuer: "other", ExpirationMinutes: 30}
	parseCfg := config.JWTConfig{Secret: "secret", Issuer: "campusdesk", ExpirationMinutes: 30}

	token, err := MintAccessToken(mintCfg, time.Now().UTC(), AccessTokenPayload{
		UserID:   uuid.New(),
		MemberID: "S2021001",
		Role:     enums.UserRoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	if _, err := ParseAccessToken(parseCfg, token); err == nil {
		t.Fatalf("expected issuer mismatch error")
	}
}

package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"
)

func TestTokenVerifier_RoundTrip(t *testing.T) {
	v := service.NewTokenVerifier("secret", "tracker")

	token, err := v.SignAccessToken("u1", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := v.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "u1" {
		t.Errorf("expected subject u1, got %q", claims.Subject)
	}
}

func TestTokenVerifier_Rejects(t *testing.T) {
	v := service.NewTokenVerifier("secret", "tracker")

	expired, _ := v.SignAccessToken("u1", -time.Minute)
	otherKey, _ := service.NewTokenVerifier("other", "tracker").SignAccessToken("u1", time.Minute)
	otherIssuer, _ := service.NewTokenVerifier("secret", "someone-else").SignAccessToken("u1", time.Minute)
	noSubject, _ := v.SignAccessToken("", time.Minute)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"expired", expired},
		{"wrong key", otherKey},
		{"wrong issuer", otherIssuer},
		{"no subject", noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateAccessToken(tt.token)
			var unauth *domain.ErrUnauthorized
			if !errors.As(err, &unauth) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestOperatorTokenRoundTrip(t *testing.T) {
	svc := NewService("secret", time.Minute)
	id := uuid.New()

	token, expiresAt, err := svc.GenerateOperatorToken(id, "cashier", RoleOperator)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expiresAt) > time.Minute {
		t.Fatalf("unexpected expiry %s", expiresAt)
	}

	claims, err := svc.ValidateOperatorToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.OperatorID != id || claims.Role != RoleOperator || claims.Name != "cashier" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateOperatorTokenExpired(t *testing.T) {
	svc := NewService("secret", -time.Minute)
	token, _, err := svc.GenerateOperatorToken(uuid.New(), "cashier", RoleAdmin)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := svc.ValidateOperatorToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateOperatorTokenRejectsGarbage(t *testing.T) {
	if _, err := NewService("secret", time.Minute).ValidateOperatorToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

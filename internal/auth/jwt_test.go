package auth

import (
	"testing"

	"github.com/google/uuid"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret", 24)
	userID := uuid.New()

	token, err := svc.Generate(userID, "staff@example.com", "staff")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("Expected user ID %s, got %s", userID, claims.UserID)
	}
	if claims.Email != "staff@example.com" || claims.Role != "staff" {
		t.Errorf("Unexpected claims: %+v", claims)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", 24).Generate(uuid.New(), "a@example.com", "admin")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if _, err := NewJWTService("secret-b", 24).Validate(token); err == nil {
		t.Fatal("Expected validation failure with wrong secret")
	}
}

func TestJWTRejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret", -1)
	token, err := svc.Generate(uuid.New(), "a@example.com", "staff")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if _, err := svc.Validate(token); err == nil {
		t.Fatal("Expected validation failure for expired token")
	}
}

func TestJWTRejectsGarbage(t *testing.T) {
	if _, err := NewJWTService("test-secret", 24).Validate("not.a.token"); err == nil {
		t.Fatal("Expected validation failure for malformed token")
	}
}

package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/reliefhub/reliefhub/models"
)

func TestJWTRoundTrip(t *testing.T) {
	user := models.User{UserID: 7, Login: "alice", Roles: "editor,reader"}

	token, err := GenerateJWTToken(user, "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWTToken failed: %v", err)
	}

	actor, err := ValidateAndParseJWTToken(token, "secret")
	if err != nil {
		t.Fatalf("ValidateAndParseJWTToken failed: %v", err)
	}

	if actor.UserID != 7 || actor.Login != "alice" {
		t.Errorf("unexpected actor: %+v", actor)
	}
	if !actor.HasRole(models.RoleEditor) || !actor.HasRole(models.RoleReader) {
		t.Errorf("roles not decoded: %+v", actor.Roles)
	}
}

func TestJWTWrongKey(t *testing.T) {
	token, err := GenerateJWTToken(models.User{UserID: 1, Login: "a"}, "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWTToken failed: %v", err)
	}

	_, err = ValidateAndParseJWTToken(token, "other")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestJWTExpired(t *testing.T) {
	token, err := GenerateJWTToken(models.User{UserID: 1, Login: "a"}, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWTToken failed: %v", err)
	}

	_, err = ValidateAndParseJWTToken(token, "secret")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestParseBearerToken(t *testing.T) {
	token, err := ParseBearerToken("Bearer abc.def.ghi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "abc.def.ghi" {
		t.Errorf("token = %q", token)
	}

	if _, err = ParseBearerToken("Basic abc"); !errors.Is(err, ErrNoBearerToken) {
		t.Errorf("expected ErrNoBearerToken, got %v", err)
	}
	if _, err = ParseBearerToken("Bearer "); !errors.Is(err, ErrNoBearerToken) {
		t.Errorf("expected ErrNoBearerToken for empty token, got %v", err)
	}
}

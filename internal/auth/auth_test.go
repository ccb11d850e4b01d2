package auth

import (
	"errors"
	"testing"
	"time"
)

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "s3cret") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "wrong") || CheckPassword("", "s3cret") {
		t.Fatalf("expected mismatch")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	tok, err := SignJWT("k", "admin", "admin", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := ParseJWT("k", tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "admin" || claims.Role != "admin" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestJWTRejects(t *testing.T) {
	tok, _ := SignJWT("k", "admin", "admin", time.Hour)
	if _, err := ParseJWT("other", tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for wrong secret, got %v", err)
	}

	expired, _ := SignJWT("k", "admin", "admin", -time.Minute)
	if _, err := ParseJWT("k", expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for expired token, got %v", err)
	}

	if _, err := SignJWT("", "admin", "admin", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

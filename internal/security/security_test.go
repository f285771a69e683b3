package security

import (
	"testing"
	"time"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret" {
		t.Fatalf("expected password to be hashed")
	}
	if !CheckPassword(hash, "s3cret") {
		t.Fatalf("expected matching password to verify")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestAdminToken_RoundTrip(t *testing.T) {
	token, err := IssueAdminToken("test-secret", time.Hour, 42, "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, errParse := ParseAdminToken("test-secret", token)
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if claims.UserID != 42 || claims.Username != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, errWrong := ParseAdminToken("other-secret", token); errWrong == nil {
		t.Fatalf("expected wrong secret to fail")
	}
}

func TestIssueAdminToken_RequiresSecret(t *testing.T) {
	if _, err := IssueAdminToken("  ", time.Hour, 1, "admin"); err == nil {
		t.Fatalf("expected empty secret to fail")
	}
}

func TestNewPromoterToken_HashMatches(t *testing.T) {
	token, hash, err := NewPromoterToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if token == "" || hash == "" {
		t.Fatalf("expected non-empty token and hash")
	}
	if HashToken(token) != hash {
		t.Fatalf("expected hash of token to match stored hash")
	}

	_, otherHash, errOther := NewPromoterToken()
	if errOther != nil {
		t.Fatalf("new token: %v", errOther)
	}
	if otherHash == hash {
		t.Fatalf("expected distinct tokens to have distinct hashes")
	}
}

func TestValidateTOTP_RejectsGarbage(t *testing.T) {
	key, err := NewTOTPKey("promoter-backoffice", "admin")
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if ValidateTOTP(key.Secret(), "000000") && ValidateTOTP(key.Secret(), "123456") {
		t.Fatalf("expected at least one arbitrary code to be rejected")
	}
}

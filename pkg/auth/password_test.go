package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "" || hash == "s3cret-pass" {
		t.Fatalf("unexpected hash %q", hash)
	}
	if !CheckPassword("s3cret-pass", hash) {
		t.Fatal("expected password check to pass")
	}
	if CheckPassword("wrong", hash) {
		t.Fatal("expected password check to fail")
	}
	if CheckPassword("s3cret-pass", "") {
		t.Fatal("expected empty stored hash to fail")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("abcdef"); err != nil {
		t.Fatalf("expected 6-char password to pass, got %v", err)
	}
	if err := ValidatePassword("abc"); err == nil {
		t.Fatal("expected short password to fail")
	}
	if _, err := HashPassword("abc"); err == nil {
		t.Fatal("expected HashPassword to reject weak password")
	}
}

package handlers

import (
	"testing"

	"github.com/md-rashed-zaman/hourbook/services/identity-service/internal/storage"
)

func testUser() storage.User {
	return storage.User{
		ID:       "user-1",
		Email:    "barber@example.com",
		Provider: true,
	}
}

func TestPasswordHashing(t *testing.T) {
	password := "pass123"
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := verifyPassword(hash, password); err != nil {
		t.Fatalf("verifyPassword should succeed: %v", err)
	}
	if err := verifyPassword(hash, "wrong-pass"); err == nil {
		t.Fatal("verifyPassword should fail for wrong password")
	}
}

func TestHS256SignerRoundTrip(t *testing.T) {
	signer := NewHS256Signer("test-secret")
	user := testUser()

	token, err := issueJWT(user, signer)
	if err != nil {
		t.Fatalf("issueJWT failed: %v", err)
	}
	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Sub != user.ID || claims.Email != user.Email || !claims.Provider {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

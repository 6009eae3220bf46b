package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"taskboard/api"
)

func TestSignedTokenIsAccepted(t *testing.T) {
	secret := []byte("dev-secret")
	tok, err := signToken(secret, tokenRequest{userID: "auth0|maria", username: "maria@user.com", audience: "https://taskboard", ttl: time.Hour}, time.Now())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	auth, err := api.NewAuth(api.AuthConfig{Mode: api.AuthModeHS256, SharedSecret: secret, Audience: "https://taskboard"})
	if err != nil {
		t.Fatalf("new auth: %v", err)
	}
	p, err := auth.PrincipalFromBearer(tok)
	if err != nil {
		t.Fatalf("token rejected: %v", err)
	}
	if p.ID != "auth0|maria" || p.Username != "maria@user.com" {
		t.Fatalf("unexpected principal: %#v", p)
	}
}

func TestSignTokenRequiresUser(t *testing.T) {
	if _, err := signToken([]byte("s"), tokenRequest{ttl: time.Hour}, time.Now()); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}

func TestWriteTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	if err := writeTokens(path, []string{"a", "b"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got []string
	if err := sonic.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[1] != "b" {
		t.Fatalf("unexpected tokens: %v", got)
	}
}

// Command gen-token mints HS256 bearer tokens for a server running with
// AUTH_MODE=hs256. The secret is read from AUTH_SHARED_SECRET.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
)

type tokenRequest struct {
	userID   string
	username string
	audience string
	ttl      time.Duration
}

func main() {
	var (
		count    = flag.Int("count", 1, "number of tokens to generate")
		prefix   = flag.String("prefix", "auth0|dev-user", "prefix for generated user IDs when count > 1")
		start    = flag.Int("start", 1, "starting index for generated user IDs when count > 1")
		username = flag.String("username", "", "preferred_username claim; defaults to the user ID")
		audience = flag.String("audience", os.Getenv("AUTH0_AUDIENCE"), "aud claim")
		ttl      = flag.Duration("ttl", time.Hour, "token lifetime")
		output   = flag.String("output", "", "file to write generated tokens as a JSON array")
	)
	flag.Parse()

	if *count < 1 {
		log.Fatal("count must be at least 1")
	}
	if *start < 1 {
		log.Fatal("start index must be at least 1")
	}
	args := flag.Args()
	if len(args) > 0 && *count > 1 {
		log.Fatal("explicit user ID cannot be provided when generating multiple tokens")
	}

	secret := os.Getenv("AUTH_SHARED_SECRET")
	if secret == "" {
		log.Fatal("AUTH_SHARED_SECRET must be set")
	}

	tokens := make([]string, *count)
	for i := range tokens {
		userID := *prefix
		switch {
		case len(args) > 0:
			userID = args[0]
		case *count > 1:
			userID = fmt.Sprintf("%s-%d", *prefix, *start+i)
		}
		name := *username
		if name == "" || *count > 1 {
			name = userID
		}
		tok, err := signToken([]byte(secret), tokenRequest{userID: userID, username: name, audience: *audience, ttl: *ttl}, time.Now())
		if err != nil {
			log.Fatalf("generate token: %v", err)
		}
		tokens[i] = tok
	}

	if *output != "" {
		if err := writeTokens(*output, tokens); err != nil {
			log.Fatalf("write tokens: %v", err)
		}
	}
	fmt.Print(tokens[0])
}

func signToken(secret []byte, req tokenRequest, now time.Time) (string, error) {
	if req.userID == "" {
		return "", errors.New("user id must not be empty")
	}
	claims := jwt.MapClaims{
		"sub":                req.userID,
		"preferred_username": req.username,
		"iat":                now.Unix(),
		"exp":                now.Add(req.ttl).Unix(),
	}
	if req.audience != "" {
		claims["aud"] = req.audience
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func writeTokens(path string, tokens []string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := sonic.Marshal(tokens)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

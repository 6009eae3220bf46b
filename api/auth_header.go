package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// accessTokenCookie lets browser form posts authenticate without a header.
const accessTokenCookie = "access_token"

const bearerPrefix = "Bearer "

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("bad auth header")
)

// authHeaderFromRequest returns the Authorization header, falling back to the
// access token cookie. It returns "" when neither is present.
func authHeaderFromRequest(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization)); h != "" {
		return h
	}
	if ck, err := r.Cookie(accessTokenCookie); err == nil && ck.Value != "" {
		return bearerPrefix + ck.Value
	}
	return ""
}

// bearerToken extracts the compact JWT from a "Bearer <token>" header value.
func bearerToken(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errMissingAuthorization
	}
	if len(raw) <= len(bearerPrefix) || !strings.HasPrefix(raw, bearerPrefix) {
		return "", errBadAuthorization
	}
	token := strings.TrimSpace(raw[len(bearerPrefix):])
	if strings.Count(token, ".") != 2 {
		return "", errBadAuthorization
	}
	return token, nil
}

package utils

import (
	"net/url"
	"strings"
)

// ExtractCode returns the value after the first "code=" in a redirect URL, up
// to the next "&" or the end. It works on the raw string, so no decoding is
// applied and an empty string means no code was present.
func ExtractCode(redirectURL string) string {
	_, rest, ok := strings.Cut(redirectURL, "code=")
	if !ok {
		return ""
	}
	code, _, _ := strings.Cut(rest, "&")
	return code
}

// OAuthRedirectError is the failure the authorization server reports back
// through the redirect.
type OAuthRedirectError struct {
	Code        string
	Description string
}

func (e *OAuthRedirectError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// ExtractOAuthError returns the error carried by a redirect URL, or nil.
func ExtractOAuthError(redirectURL string) *OAuthRedirectError {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil
	}
	q := u.Query()
	if q.Get("error") == "" {
		return nil
	}
	return &OAuthRedirectError{Code: q.Get("error"), Description: q.Get("error_description")}
}

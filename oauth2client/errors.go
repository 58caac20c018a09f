package oauth2client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ConfigurationError reports credentials that cannot be used.
// It is detected before any network activity and retrying will not help.
type ConfigurationError struct {
	Fields []string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("oauth2: invalid configuration: %s: %s", strings.Join(e.Fields, ", "), e.Reason)
}

// AuthenticationError reports a failed token acquisition.
//
// Unreachable is set when no response arrived from the authority. StatusCode is the
// HTTP status of an error response; it is zero both for unreachable authorities and
// for successful responses whose body could not be used. Code and Description carry
// the OAuth2 error fields (e.g. "invalid_client") when the authority sent them.
type AuthenticationError struct {
	Authority   string
	StatusCode  int
	Code        string
	Description string
	Unreachable bool
	Err         error
}

func (e *AuthenticationError) Error() string {
	var b strings.Builder
	b.WriteString("oauth2: token acquisition failed")
	if e.Authority != "" {
		b.WriteString(" (authority ")
		b.WriteString(e.Authority)
		b.WriteString(")")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Code != "" {
		b.WriteString(": ")
		b.WriteString(e.Code)
	}
	if e.Description != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying may succeed. Rejections of the credentials
// or scopes (4xx other than 429) and unusable token responses repeat deterministically.
func (e *AuthenticationError) Temporary() bool {
	switch {
	case e.Unreachable:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// isUnreachable reports whether err is a transport failure, i.e. no response was received.
func isUnreachable(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

// decodeOAuthError extracts the OAuth2 "error" and "error_description" fields from
// the first JSON object found in data.
func decodeOAuthError(data []byte) (code, description string) {
	start := bytes.IndexByte(data, '{')
	if start < 0 {
		return "", ""
	}

	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.NewDecoder(bytes.NewReader(data[start:])).Decode(&body); err != nil {
		return "", ""
	}
	return body.Error, body.ErrorDescription
}

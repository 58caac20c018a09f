package oauth2client

import (
	"net/url"
	"strings"
)

// DefaultAuthorityHost is the Microsoft identity platform host used when none is configured.
const DefaultAuthorityHost = "login.microsoftonline.com"

// Credentials identify an application to an OAuth2 authority.
// A TokenManager keeps its own copy, so later changes by the caller have no effect.
type Credentials struct {
	ClientID     string
	ClientSecret string
	// Authority is the issuer URL, e.g. "https://login.microsoftonline.com/<tenant>/v2.0".
	Authority   string
	RedirectURI string
	Scopes      []string
}

// AuthorityFromTenant builds the v2.0 authority URL for a tenant.
// An empty host selects DefaultAuthorityHost.
func AuthorityFromTenant(host, tenant string) string {
	if host == "" {
		host = DefaultAuthorityHost
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "https://"), "/")
	return "https://" + host + "/" + tenant + "/v2.0"
}

// Validate reports every missing or malformed field as a single *ConfigurationError.
func (c Credentials) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "client id")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, "client secret")
	}
	if strings.TrimSpace(c.RedirectURI) == "" {
		missing = append(missing, "redirect uri")
	}
	if strings.TrimSpace(c.Authority) == "" {
		missing = append(missing, "authority")
	}
	if len(nonEmpty(c.Scopes)) == 0 {
		missing = append(missing, "scopes")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Fields: missing, Reason: "missing required value"}
	}

	u, err := url.Parse(c.Authority)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return &ConfigurationError{Fields: []string{"authority"}, Reason: "must be an absolute http(s) URL"}
	}
	return nil
}

// AuthorityBase returns the authority without a trailing "/v2.0" segment.
// This is the form MSAL expects.
func (c Credentials) AuthorityBase() string {
	base := strings.TrimSuffix(c.Authority, "/")
	return strings.TrimSuffix(base, "/v2.0")
}

// TokenURL returns the v2.0 token endpoint of the authority.
func (c Credentials) TokenURL() string {
	return c.AuthorityBase() + "/oauth2/v2.0/token"
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

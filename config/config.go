// Package config loads the application settings file.
//
// The file uses the keys of the original appsettings.json. JSON and YAML are both
// accepted since YAML is a superset of JSON.
package config

import (
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/codehedgehog/msgraph-console/oauth2client"
)

// DefaultPath is the settings file looked up in the working directory.
const DefaultPath = "appsettings.json"

// DefaultGraphEndpoint is the Graph host whose .default scope is requested.
const DefaultGraphEndpoint = "https://graph.microsoft.com"

// Config mirrors appsettings.json.
type Config struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationSecret string `json:"applicationSecret"`
	RedirectURI       string `json:"redirectUri"`
	TenantID          string `json:"tenantId"`
	Domain            string `json:"domain"`

	// Optional overrides.
	AuthorityHost string `json:"authorityHost,omitempty"`
	GraphEndpoint string `json:"graphEndpoint,omitempty"`
}

// Load reads and validates the settings file at path.
// A missing file yields an error wrapping fs.ErrNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates settings.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every required key is present and non-empty.
func (c *Config) Validate() error {
	required := []struct {
		key, value string
	}{
		{"applicationId", c.ApplicationID},
		{"applicationSecret", c.ApplicationSecret},
		{"redirectUri", c.RedirectURI},
		{"tenantId", c.TenantID},
		{"domain", c.Domain},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return &oauth2client.ConfigurationError{Fields: missing, Reason: "missing required setting"}
	}
	return nil
}

// GraphBaseURL returns the v1.0 API root of the configured Graph endpoint.
func (c *Config) GraphBaseURL() string {
	return c.graphEndpoint() + "/v1.0"
}

// Credentials returns the client-credentials configuration requesting the
// application's statically configured permissions (the ".default" scope).
func (c *Config) Credentials() oauth2client.Credentials {
	return oauth2client.Credentials{
		ClientID:     c.ApplicationID,
		ClientSecret: c.ApplicationSecret,
		Authority:    oauth2client.AuthorityFromTenant(c.AuthorityHost, c.TenantID),
		RedirectURI:  c.RedirectURI,
		Scopes:       []string{c.graphEndpoint() + "/.default"},
	}
}

func (c *Config) graphEndpoint() string {
	if c.GraphEndpoint == "" {
		return DefaultGraphEndpoint
	}
	return strings.TrimSuffix(c.GraphEndpoint, "/")
}

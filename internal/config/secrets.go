package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonesmeistro/keyword-planner-volumes/pkg/planner"
)

// SecretsEnvPrefix prefixes the per-credential environment overrides, e.g.
// GOOGLE_ADS_DEVELOPER_TOKEN.
const SecretsEnvPrefix = "GOOGLE_ADS_"

// LoadSecrets reads credentials from a YAML file, then applies environment
// overrides. The file may be absent when everything comes from the
// environment.
func LoadSecrets(path string) (planner.Credentials, error) {
	var creds planner.Credentials

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return creds, &ConfigurationError{Field: path, Err: fmt.Errorf("read secrets: %w", err)}
		default:
			if err := yaml.Unmarshal(data, &creds); err != nil {
				return creds, &ConfigurationError{Field: path, Err: fmt.Errorf("parse secrets: %w", err)}
			}
		}
	}

	applySecretEnv(&creds)

	if err := validateSecrets(creds); err != nil {
		return creds, err
	}
	return creds, nil
}

func applySecretEnv(creds *planner.Credentials) {
	for name, field := range secretFields(creds) {
		if v, ok := os.LookupEnv(SecretsEnvPrefix + strings.ToUpper(name)); ok && v != "" {
			*field = v
		}
	}
}

func secretFields(creds *planner.Credentials) map[string]*string {
	return map[string]*string{
		"developer_token":    &creds.DeveloperToken,
		"client_id":          &creds.ClientID,
		"client_secret":      &creds.ClientSecret,
		"refresh_token":      &creds.RefreshToken,
		"login_customer_id":  &creds.LoginCustomerID,
		"client_customer_id": &creds.ClientCustomerID,
	}
}

var requiredSecrets = []string{"developer_token", "client_id", "client_secret", "refresh_token", "client_customer_id"}

func validateSecrets(creds planner.Credentials) error {
	fields := secretFields(&creds)
	var missing []string
	for _, name := range requiredSecrets {
		if strings.TrimSpace(*fields[name]) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &ConfigurationError{Field: "secrets", Err: fmt.Errorf("missing required credentials: %s", strings.Join(missing, ", "))}
	}
	return nil
}

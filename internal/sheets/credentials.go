package sheets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrNoCredentials is returned when the credentials file does not exist.
	ErrNoCredentials = errors.New("credentials file not found")

	// ErrInvalidCredentials is returned when the file is not a service
	// account key.
	ErrInvalidCredentials = errors.New("credentials file is not a service account key")
)

// Credentials are the fields of a service-account key file that are
// checked before use. The private key itself is never exposed.
type Credentials struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	hasKey      bool
}

// HasPrivateKey reports whether the file carries a private key.
func (c *Credentials) HasPrivateKey() bool {
	return c.hasKey
}

// LoadCredentials reads and checks a service-account key file. It returns
// the raw file for the API client together with the parsed summary.
func LoadCredentials(path string) ([]byte, *Credentials, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user's own configuration
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNoCredentials, path)
		}
		return nil, nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	var raw struct {
		Credentials
		PrivateKey string `json:"private_key"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if raw.ClientEmail == "" {
		return nil, nil, fmt.Errorf("%w: client_email is missing", ErrInvalidCredentials)
	}
	if raw.Type != "" && raw.Type != "service_account" {
		return nil, nil, fmt.Errorf("%w: type is %q", ErrInvalidCredentials, raw.Type)
	}

	creds := raw.Credentials
	creds.hasKey = raw.PrivateKey != ""
	return data, &creds, nil
}

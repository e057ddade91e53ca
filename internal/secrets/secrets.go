// Package secrets supplies credentials (queue login, directory API key,
// payload signing secret) from a file-backed store or the environment.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Well-known secret keys.
const (
	KeyAPIKey        = "api_key"
	KeyHost          = "host"
	KeyPort          = "port"
	KeyUsername      = "username"
	KeyPassword      = "password"
	KeySigningSecret = "signing_secret"
)

// Provider resolves named secrets.
type Provider interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// New selects a provider: file-backed when SECRETS_FILE is set,
// environment-backed otherwise.
func New() Provider {
	if path := os.Getenv("SECRETS_FILE"); path != "" {
		return NewFileProvider(path)
	}
	return NewEnvProvider("RELAY_SECRET_")
}

// FileProvider reads secrets from a flat JSON object on disk. The file
// is read once and cached.
type FileProvider struct {
	path   string
	once   sync.Once
	values map[string]string
	err    error
}

// NewFileProvider creates a FileProvider for the given path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// GetSecret implements Provider.
func (p *FileProvider) GetSecret(ctx context.Context, key string) (string, error) {
	p.once.Do(func() {
		data, err := os.ReadFile(p.path)
		if err != nil {
			p.err = fmt.Errorf("failed to read secrets file %s: %w", p.path, err)
			return
		}
		if err := json.Unmarshal(data, &p.values); err != nil {
			p.err = fmt.Errorf("failed to parse secrets file %s: %w", p.path, err)
		}
	})
	if p.err != nil {
		return "", p.err
	}
	value, ok := p.values[key]
	if !ok {
		return "", fmt.Errorf("secret %q not found in %s", key, p.path)
	}
	return value, nil
}

// EnvProvider reads secrets from environment variables with a common
// prefix, e.g. api_key -> RELAY_SECRET_API_KEY.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an EnvProvider with the given variable prefix.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

// GetSecret implements Provider.
func (p *EnvProvider) GetSecret(ctx context.Context, key string) (string, error) {
	name := p.prefix + strings.ToUpper(key)
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("secret %q not found (env %s unset)", key, name)
	}
	return value, nil
}

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvProvider reads secrets from environment variables.
//
// Names are upper-cased with hyphens turned into underscores and the prefix
// prepended: "uspto-api-key" becomes USPTO_API_KEY with an empty prefix.
type EnvProvider struct {
	Prefix string
}

// NewEnvProvider creates an environment provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// Get implements Provider.
func (p *EnvProvider) Get(_ context.Context, name string) (string, error) {
	envVar := EnvVarName(p.Prefix, name)
	value := strings.TrimSpace(os.Getenv(envVar))
	if value == "" {
		return "", fmt.Errorf("%w in environment (env var: %s)", ErrNotFound, envVar)
	}
	return value, nil
}

// Name implements Provider.
func (p *EnvProvider) Name() string { return "env" }

// EnvVarName converts a secret name to its environment variable.
func EnvVarName(prefix, name string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

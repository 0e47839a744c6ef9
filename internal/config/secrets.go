package config

import (
	"fmt"
	"os"
	"strings"
)

// ParseEnvFile reads a dotenv-style secrets file into a map. Blank lines
// and # comments are skipped; "export " prefixes and surrounding quotes
// are stripped.
func ParseEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	vars := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		s := strings.TrimSpace(line)
		if s == "" || s[0] == '#' {
			continue
		}
		s = strings.TrimPrefix(s, "export ")
		eqIdx := strings.IndexByte(s, '=')
		if eqIdx < 0 {
			continue
		}
		key := s[:eqIdx]
		val := stripQuotes(s[eqIdx+1:])
		vars[key] = val
	}
	return vars, nil
}

// LoadSecrets reads the configured env file (if any) into the process
// environment without overriding variables already set.
func LoadSecrets(cfg *Config) error {
	if cfg.Secrets.EnvFile == "" {
		return nil
	}
	vars, err := ParseEnvFile(cfg.Secrets.EnvFile)
	if err != nil {
		return err
	}
	for k, v := range vars {
		if os.Getenv(k) == "" {
			os.Setenv(k, v)
		}
	}
	return nil
}

// APIKey resolves a provider's key from the process environment.
func (p Provider) APIKey() string {
	return os.Getenv(p.APIKeyEnv)
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

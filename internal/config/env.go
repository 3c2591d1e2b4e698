package config

import (
	"fmt"
	"os"
	"strings"
)

// ParseEnvFile reads a dotenv-style file into a key/value map. Blank
// lines and comments are ignored; "export " prefixes and surrounding
// quotes are stripped.
func ParseEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	env := map[string]string{}
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
		env[s[:eqIdx]] = stripQuotes(s[eqIdx+1:])
	}
	return env, nil
}

// LoadSecrets merges the configured env file into the process
// environment without overriding variables that are already set.
func (c *Config) LoadSecrets() error {
	if c.Secrets.EnvFile == "" {
		return nil
	}
	env, err := ParseEnvFile(c.Secrets.EnvFile)
	if err != nil {
		return err
	}
	for k, v := range env {
		if os.Getenv(k) == "" {
			os.Setenv(k, v)
		}
	}
	return nil
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

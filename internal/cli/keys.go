// Package cli holds operations shared by the arbiter command line.
package cli

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type keysFile struct {
	DefaultPolicy struct {
		AllowLocalhostWithoutAuth *bool `yaml:"allow_localhost_without_auth"`
	} `yaml:"default_policy"`
	Projects map[string]projectKeys `yaml:"projects"`
}

type projectKeys struct {
	Keys []string `yaml:"keys"`
}

// AddProjectKey generates a fresh API key for the project and appends it to
// the keys file, creating the file when needed. The generated key is
// returned once; it is not recoverable later.
func AddProjectKey(path, project string) (string, error) {
	path = strings.TrimSpace(path)
	project = strings.TrimSpace(project)
	if path == "" {
		return "", fmt.Errorf("keys file path required")
	}
	if project == "" {
		return "", fmt.Errorf("project required")
	}

	cfg, err := loadKeysFile(path)
	if err != nil {
		return "", err
	}

	key, err := generateKey()
	if err != nil {
		return "", err
	}
	if err := cfg.append(project, key); err != nil {
		return "", err
	}
	if err := cfg.save(path); err != nil {
		return "", err
	}
	return key, nil
}

// append records a key for the project. Keys are one-to-one with projects;
// the keyring refuses files that share a key, so the writer refuses too.
func (f *keysFile) append(project, key string) error {
	for owner, pk := range f.Projects {
		for _, existing := range pk.Keys {
			if existing == key {
				return fmt.Errorf("key already assigned to project %q", owner)
			}
		}
	}
	if f.Projects == nil {
		f.Projects = make(map[string]projectKeys)
	}
	pk := f.Projects[project]
	pk.Keys = append(pk.Keys, key)
	f.Projects[project] = pk
	return nil
}

func (f *keysFile) save(path string) error {
	if f.DefaultPolicy.AllowLocalhostWithoutAuth == nil {
		val := true
		f.DefaultPolicy.AllowLocalhostWithoutAuth = &val
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal keys file: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write keys file: %w", err)
	}
	return nil
}

func loadKeysFile(path string) (keysFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return keysFile{}, nil
		}
		return keysFile{}, fmt.Errorf("read keys file: %w", err)
	}
	var cfg keysFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return keysFile{}, fmt.Errorf("parse keys file: %w", err)
	}
	return cfg, nil
}

func generateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

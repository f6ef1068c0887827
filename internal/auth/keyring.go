// Package auth maps bearer keys to projects and guards the HTTP surface.
// Localhost callers may be admitted without a key, per policy.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultKeysFile = "arbiter.keys.yaml"

type keysFile struct {
	DefaultPolicy struct {
		AllowLocalhostWithoutAuth *bool `yaml:"allow_localhost_without_auth"`
	} `yaml:"default_policy"`
	Projects map[string]projectKeys `yaml:"projects"`
}

type projectKeys struct {
	Keys []string `yaml:"keys"`
}

// Keyring resolves bearer keys to the project they belong to.
type Keyring struct {
	AllowLocalhostWithoutAuth bool
	keyToProject              map[string]string
}

func ResolveKeysPath() string {
	if v := strings.TrimSpace(os.Getenv("ARBITER_KEYS_FILE")); v != "" {
		return v
	}
	return filepath.Join(".", defaultKeysFile)
}

// LoadKeyring reads the keys file, bootstrapping one with a generated dev
// key when it does not exist yet. An empty path yields a localhost-only ring.
func LoadKeyring(path string) (*Keyring, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return defaultKeyring(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := bootstrapDevKey(path, "dev"); err != nil {
			return nil, fmt.Errorf("bootstrap dev key: %w", err)
		}
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read keys file: %w", err)
	}

	var cfg keysFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse keys file: %w", err)
	}
	ring := defaultKeyring()
	if cfg.DefaultPolicy.AllowLocalhostWithoutAuth != nil {
		ring.AllowLocalhostWithoutAuth = *cfg.DefaultPolicy.AllowLocalhostWithoutAuth
	}
	for project, keys := range cfg.Projects {
		for _, key := range keys.Keys {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if existing, ok := ring.keyToProject[key]; ok && existing != project {
				return nil, fmt.Errorf("key reused across projects: %q", key)
			}
			ring.keyToProject[key] = project
		}
	}
	return ring, nil
}

func defaultKeyring() *Keyring {
	return &Keyring{AllowLocalhostWithoutAuth: true, keyToProject: make(map[string]string)}
}

// NewKeyring builds a ring from an explicit key-to-project map. Test support.
func NewKeyring(allowLocalhost bool, keyToProject map[string]string) *Keyring {
	clone := make(map[string]string, len(keyToProject))
	for k, v := range keyToProject {
		clone[k] = v
	}
	return &Keyring{AllowLocalhostWithoutAuth: allowLocalhost, keyToProject: clone}
}

func (k *Keyring) ProjectForKey(key string) (string, bool) {
	if k == nil {
		return "", false
	}
	project, ok := k.keyToProject[key]
	return project, ok
}

// bootstrapDevKey writes a fresh keys file holding one generated key, so a
// first run needs no manual setup.
func bootstrapDevKey(path, project string) error {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	key := base64.RawURLEncoding.EncodeToString(buf)

	cfg := keysFile{Projects: map[string]projectKeys{project: {Keys: []string{key}}}}
	allowLocalhost := true
	cfg.DefaultPolicy.AllowLocalhostWithoutAuth = &allowLocalhost

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal keys file: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

package portal

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// DefaultTokenPath returns the default on-disk location for the portal
// restore token.
func DefaultTokenPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.Getenv("HOME")
	}
	return filepath.Join(configDir, "cosmic-ext-rdp-server", "portal_token")
}

type tokenFile struct {
	Token string `json:"token"`
}

// LoadRestoreToken reads a previously saved restore token. A missing or
// unreadable file yields an empty token, which triggers the interactive
// consent dialog on the next negotiation.
func LoadRestoreToken(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return ""
	}
	return tf.Token
}

// SaveRestoreToken persists the restore token for silent re-authorization on
// future runs. Empty tokens are not written.
func SaveRestoreToken(path, token string) error {
	if token == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(tokenFile{Token: token})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apiclient "github.com/recruitment/portal/pkg/api/client"
	"github.com/recruitment/portal/pkg/crypto"
)

// storedSession is the on-disk form of a session. The token is sealed with
// AES-GCM when a secret is configured.
type storedSession struct {
	APIBaseURL string    `json:"api_base_url"`
	Token      string    `json:"token,omitempty"`
	Encrypted  bool      `json:"encrypted,omitempty"`
	RoleID     int       `json:"role_id,omitempty"`
	HasRole    bool      `json:"has_role,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitzero"`
}

func loadSession(path, secret string) (storedSession, apiclient.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storedSession{}, apiclient.Session{}, nil
		}
		return storedSession{}, apiclient.Session{}, err
	}
	var stored storedSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return storedSession{}, apiclient.Session{}, fmt.Errorf("parse session file: %w", err)
	}
	token := stored.Token
	if stored.Encrypted && token != "" {
		if secret == "" {
			return storedSession{}, apiclient.Session{}, errors.New("session token is encrypted; set RECRUIT_TOKEN_SECRET")
		}
		token, err = crypto.DecryptToString(secret, stored.Token)
		if err != nil {
			return storedSession{}, apiclient.Session{}, fmt.Errorf("decrypt session token: %w", err)
		}
	}
	sess := apiclient.Session{
		Token:     token,
		RoleID:    stored.RoleID,
		HasRole:   stored.HasRole,
		ExpiresAt: stored.ExpiresAt,
	}
	return stored, sess, nil
}

func saveSession(path, secret, baseURL string, sess apiclient.Session) error {
	stored := storedSession{
		APIBaseURL: baseURL,
		Token:      sess.Token,
		RoleID:     sess.RoleID,
		HasRole:    sess.HasRole,
		ExpiresAt:  sess.ExpiresAt,
	}
	if secret != "" && sess.Token != "" {
		sealed, err := crypto.EncryptString(secret, sess.Token)
		if err != nil {
			return fmt.Errorf("encrypt session token: %w", err)
		}
		stored.Token = sealed
		stored.Encrypted = true
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	return writePrivate(path, data)
}

// writePrivate replaces path with data through a temporary file in the same
// directory, so the result is always mode 0600 whatever the previous file had.
func writePrivate(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func removeSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

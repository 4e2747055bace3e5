// Package store persists the long-lived Freebox registration credential
// across runs. The credential is written once after a granted registration
// and read on every subsequent start.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Dlizzz/fbxmetrics/internal/types"
)

// Credential is the durable application identity issued by the Freebox at
// registration time. The app token is the HMAC key for every later login,
// so the file holding it is created owner-only.
type Credential struct {
	AppToken string        `json:"app_token"`
	TrackID  types.TrackID `json:"track_id"`
}

// FileStore stores the credential as a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the stored credential. The second return value is false when no
// credential has been persisted yet.
func (s *FileStore) Load() (Credential, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credential{}, false, nil
		}
		return Credential{}, false, fmt.Errorf("read credential file: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, false, fmt.Errorf("decode credential file %s: %w", s.path, err)
	}

	if cred.AppToken == "" {
		return Credential{}, false, fmt.Errorf("credential file %s holds an empty app token", s.path)
	}

	return cred, true, nil
}

// Save persists the credential, creating parent directories as needed. The
// write goes through a temporary file and rename so a crash cannot leave a
// half-written token behind.
func (s *FileStore) Save(cred Credential) error {
	if cred.AppToken == "" {
		return fmt.Errorf("refusing to persist an empty app token")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create credential directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("create temporary credential file: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("restrict credential file mode: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write credential file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close credential file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("install credential file: %w", err)
	}

	slog.Info("credential persisted", "path", s.path, "track_id", cred.TrackID.Int())
	return nil
}

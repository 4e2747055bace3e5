package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Dlizzz/fbxmetrics/internal/types"
)

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	s := NewFileStore(path)

	want := Credential{AppToken: "dyNYgfK0Ya6FWGqq83sBHa7TwzWo+pg4fDFUJHLhZvs=", TrackID: 42}

	if err := s.Save(want); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	got, found, err := s.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if !found {
		t.Fatal("Load() expected to find a credential")
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestLoadAbsent(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "missing", "token.json"))

	_, found, err := s.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error for absent file: %v", err)
	}
	if found {
		t.Error("Load() expected found=false for absent file")
	}
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatal(err)
	}

	_, _, err := NewFileStore(path).Load()
	if err == nil {
		t.Error("Load() expected error for corrupt file")
	}
}

func TestLoadEmptyToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte(`{"app_token":"","track_id":1}`), 0600); err != nil {
		t.Fatal(err)
	}

	_, _, err := NewFileStore(path).Load()
	if err == nil {
		t.Error("Load() expected error for empty app token")
	}
}

func TestSaveRefusesEmptyToken(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "token.json"))

	if err := s.Save(Credential{TrackID: types.TrackID(1)}); err == nil {
		t.Error("Save() expected error for empty app token")
	}
}

func TestSaveCreatesDirAndRestrictsMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "token.json")
	s := NewFileStore(path)

	if err := s.Save(Credential{AppToken: "secret", TrackID: 7}); err != nil {
		t.Fatalf("Save() unexpected error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() unexpected error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("Expected file mode 0600, got %o", perm)
	}
}

func TestSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	s := NewFileStore(path)

	if err := s.Save(Credential{AppToken: "first", TrackID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(Credential{AppToken: "second", TrackID: 2}); err != nil {
		t.Fatal(err)
	}

	got, _, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.AppToken != "second" || got.TrackID != 2 {
		t.Errorf("Expected the second credential to win, got %+v", got)
	}
}

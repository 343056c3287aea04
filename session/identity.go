/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	keySessionID  = "session_id"
	keyPlayerID   = "player_id"
	keyPlayerName = "player_name"
	keyIsHost     = "is_host"
)

// Identity is who this client is within a session.
type Identity struct {
	SessionID  string
	PlayerID   string
	PlayerName string
	IsHost     bool
}

// Complete reports whether the identity is enough to open a connection.
func (i Identity) Complete() bool {
	return i.SessionID != "" && i.PlayerID != ""
}

// IdentityStore persists the identity across restarts.
type IdentityStore interface {
	Load() (Identity, error)
	Save(Identity) error
	Clear() error
}

// MemoryIdentityStore keeps the identity for the life of the process.
type MemoryIdentityStore struct {
	mu sync.Mutex
	id Identity
}

func NewMemoryIdentityStore(id Identity) *MemoryIdentityStore {
	return &MemoryIdentityStore{id: id}
}

func (m *MemoryIdentityStore) Load() (Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id, nil
}

func (m *MemoryIdentityStore) Save(id Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
	return nil
}

func (m *MemoryIdentityStore) Clear() error {
	return m.Save(Identity{})
}

// FileIdentityStore keeps the identity in a small config file. The format
// follows the file extension (json, yaml, toml).
type FileIdentityStore struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// NewFileIdentityStore stores the identity at path on fsys. A nil fsys
// means the OS filesystem.
func NewFileIdentityStore(fsys afero.Fs, path string) *FileIdentityStore {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileIdentityStore{fs: fsys, path: path}
}

func (f *FileIdentityStore) Path() string {
	return f.path
}

// configType is the file format for path: its extension when viper
// supports it, JSON otherwise.
func configType(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if slices.Contains(viper.SupportedExts, ext) {
		return ext
	}
	return "json"
}

func (f *FileIdentityStore) viper() *viper.Viper {
	v := viper.New()
	v.SetFs(f.fs)
	v.SetConfigFile(f.path)
	v.SetConfigType(configType(f.path))
	return v
}

func (f *FileIdentityStore) Load() (Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	exists, err := afero.Exists(f.fs, f.path)
	if err != nil {
		return Identity{}, fmt.Errorf("stat %s: %w", f.path, err)
	}
	if !exists {
		return Identity{}, nil
	}

	v := f.viper()
	if err := v.ReadInConfig(); err != nil {
		return Identity{}, fmt.Errorf("read %s: %w", f.path, err)
	}

	return Identity{
		SessionID:  v.GetString(keySessionID),
		PlayerID:   v.GetString(keyPlayerID),
		PlayerName: v.GetString(keyPlayerName),
		IsHost:     v.GetBool(keyIsHost),
	}, nil
}

func (f *FileIdentityStore) Save(id Identity) error {
	if id == (Identity{}) {
		return f.Clear()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fs.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(f.path), err)
	}

	v := f.viper()
	v.Set(keySessionID, id.SessionID)
	v.Set(keyPlayerID, id.PlayerID)
	v.Set(keyPlayerName, id.PlayerName)
	v.Set(keyIsHost, id.IsHost)

	var buf bytes.Buffer
	if err := v.WriteConfigTo(&buf); err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	if err := afero.WriteFile(f.fs, f.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}

func (f *FileIdentityStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := f.fs.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", f.path, err)
	}
	return nil
}

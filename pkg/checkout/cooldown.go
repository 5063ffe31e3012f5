package checkout

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// CooldownStore remembers the last submission per client identity. It is a
// UX guard only; the server enforces idempotency on the reference.
type CooldownStore interface {
	Last(identity string) (time.Time, bool, error)
	Record(identity string, at time.Time) error
}

type MemoryCooldown struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewMemoryCooldown() *MemoryCooldown {
	return &MemoryCooldown{last: make(map[string]time.Time)}
}

func (m *MemoryCooldown) Last(identity string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.last[normalizeIdentity(identity)]
	return t, ok, nil
}

func (m *MemoryCooldown) Record(identity string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last[normalizeIdentity(identity)] = at
	return nil
}

// FileCooldown persists timestamps as a JSON object in a single file.
type FileCooldown struct {
	mu   sync.Mutex
	path string
}

func NewFileCooldown(path string) *FileCooldown {
	return &FileCooldown{path: path}
}

// DefaultCooldownPath is ~/.streamvault/cooldown.json.
func DefaultCooldownPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, ".streamvault", "cooldown.json")
}

func (f *FileCooldown) read() (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		// a corrupt file only loses the advisory timestamps
		return make(map[string]time.Time), nil
	}
	return out, nil
}

func (f *FileCooldown) Last(identity string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return time.Time{}, false, err
	}
	t, ok := m[normalizeIdentity(identity)]
	return t, ok, nil
}

func (f *FileCooldown) Record(identity string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return err
	}
	m[normalizeIdentity(identity)] = at
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func normalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shashiranjanraj/filemanager/config"
	"github.com/shashiranjanraj/filemanager/pkg/logger"
)

// ─── Manager ──────────────────────────────────────────────────────────────────

// Manager maps disk names to drivers.
type Manager struct {
	mu          sync.RWMutex
	disks       map[string]Disk
	defaultDisk string
}

func NewManager(defaultDisk string) *Manager {
	return &Manager{disks: map[string]Disk{}, defaultDisk: defaultDisk}
}

// Connect boots a manager from config: "local" and "public" always, "s3"
// only when S3_BUCKET is set.
func Connect() *Manager {
	return ConnectWith(config.Storage())
}

// ConnectWith is Connect for an explicit StorageConfig.
func ConnectWith(cfg config.StorageConfig) *Manager {
	m := NewManager(cfg.Default)

	m.Register("local", NewLocalDisk(cfg.LocalRoot, cfg.URL))
	m.Register("public", NewLocalDisk(cfg.PublicRoot, cfg.URL))

	if s3 := cfg.S3; s3.Bucket != "" {
		d, err := NewS3Disk(S3Config{
			Bucket:   s3.Bucket,
			Region:   s3.Region,
			Key:      s3.Key,
			Secret:   s3.Secret,
			Endpoint: s3.Endpoint,
			URL:      s3.URL,
		})
		if err != nil {
			logger.Warn("storage: s3 disk disabled", "error", err)
		} else {
			m.Register("s3", d)
		}
	}
	return m
}

// Register plugs in a Disk under name, replacing any previous one.
func (m *Manager) Register(name string, d Disk) {
	m.mu.Lock()
	m.disks[name] = d
	m.mu.Unlock()
}

// Disk returns the named disk or ErrDiskNotConfigured.
func (m *Manager) Disk(name string) (Disk, error) {
	m.mu.RLock()
	d, ok := m.disks[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDiskNotConfigured, name)
	}
	return d, nil
}

// Has reports whether name is configured.
func (m *Manager) Has(name string) bool {
	_, err := m.Disk(name)
	return err == nil
}

// Default returns the disk named by STORAGE_DISK at boot.
func (m *Manager) Default() (Disk, error) { return m.Disk(m.defaultDisk) }

// Names lists configured disks alphabetically.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.disks))
	for name := range m.disks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

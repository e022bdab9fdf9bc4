// Package fs stores versioned keyword configurations as YAML files.
package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jl-grey-man/smbintel"
	"gopkg.in/yaml.v3"
)

// Ensure KeywordStore implements smbintel.KeywordStore at compile time.
var _ smbintel.KeywordStore = (*KeywordStore)(nil)

const (
	headFile    = "keywords.yaml"
	snapshotDir = "snapshots"
)

// KeywordStore keeps the head configuration in dir/keywords.yaml. Every
// saved version is also written to dir/snapshots, together with a
// timestamped backup of the head it replaced.
type KeywordStore struct {
	dir string
	mu  sync.Mutex

	Logger *slog.Logger
	Now    func() time.Time
}

// NewKeywordStore creates a store rooted at dir. The directory is created
// on first save.
func NewKeywordStore(dir string) *KeywordStore {
	return &KeywordStore{
		dir:    dir,
		Logger: slog.New(slog.DiscardHandler),
		Now:    time.Now,
	}
}

func (s *KeywordStore) headPath() string {
	return filepath.Join(s.dir, headFile)
}

func (s *KeywordStore) snapshotPath(name string) string {
	return filepath.Join(s.dir, snapshotDir, name)
}

func versionFile(version int) string {
	return fmt.Sprintf("version-%d.yaml", version)
}

func backupFile(version int, at time.Time) string {
	return fmt.Sprintf("keywords-v%d-%s.yaml", version, at.UTC().Format("20060102T150405"))
}

// Current returns the head configuration. A corrupt head file is replaced
// by the most recent readable snapshot.
func (s *KeywordStore) Current(ctx context.Context) (*smbintel.KeywordConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current()
}

func (s *KeywordStore) current() (*smbintel.KeywordConfig, error) {
	data, err := os.ReadFile(s.headPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, smbintel.Errorf(smbintel.ENOTFOUND, "no keyword configuration in %s", s.dir)
	} else if err != nil {
		return nil, err
	}

	cfg, err := decodeConfig(data)
	if err == nil {
		return cfg, nil
	}
	s.Logger.Error("keyword configuration unreadable", "path", s.headPath(), "err", err)
	return s.recover()
}

// recover restores the highest readable snapshot as the head.
func (s *KeywordStore) recover() (*smbintel.KeywordConfig, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, snapshotDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var (
		best     *smbintel.KeywordConfig
		bestData []byte
		bestName string
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(s.snapshotPath(e.Name()))
		if err != nil {
			continue
		}
		cfg, err := decodeConfig(data)
		if err != nil {
			s.Logger.Warn("skipping unreadable snapshot", "name", e.Name(), "err", err)
			continue
		}
		if best == nil || cfg.Version > best.Version {
			best, bestData, bestName = cfg, data, e.Name()
		}
	}
	if best == nil {
		return nil, smbintel.Errorf(smbintel.EINTERNAL, "keyword configuration corrupt and no readable snapshot")
	}

	if err := writeAtomic(s.headPath(), bestData); err != nil {
		return nil, err
	}
	s.Logger.Warn("keyword configuration restored from snapshot", "snapshot", bestName, "version", best.Version)
	return best, nil
}

// Version returns a saved version from the snapshots.
func (s *KeywordStore) Version(ctx context.Context, version int) (*smbintel.KeywordConfig, error) {
	data, err := os.ReadFile(s.snapshotPath(versionFile(version)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, smbintel.Errorf(smbintel.ENOTFOUND, "keyword configuration version %d not found", version)
	} else if err != nil {
		return nil, err
	}
	cfg, err := decodeConfig(data)
	if err != nil {
		return nil, smbintel.Errorf(smbintel.EINTERNAL, "keyword configuration version %d: %v", version, err)
	}
	return cfg, nil
}

// Save makes cfg the new head. cfg.Version must be one past the head.
func (s *KeywordStore) Save(ctx context.Context, cfg *smbintel.KeywordConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var headVersion int
	head, err := s.current()
	switch {
	case err == nil:
		headVersion = head.Version
	case smbintel.ErrorCode(err) != smbintel.ENOTFOUND:
		return err
	}
	if cfg.Version != headVersion+1 {
		return smbintel.Errorf(smbintel.ECONFLICT, "cannot save version %d over head version %d", cfg.Version, headVersion)
	}

	data, err := encodeConfig(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(s.dir, snapshotDir), 0755); err != nil {
		return err
	}

	if head != nil {
		if err := copyFile(s.headPath(), s.snapshotPath(backupFile(headVersion, s.Now()))); err != nil {
			return fmt.Errorf("backup keyword configuration: %w", err)
		}
	}
	if err := writeAtomic(s.snapshotPath(versionFile(cfg.Version)), data); err != nil {
		return err
	}
	return writeAtomic(s.headPath(), data)
}

func decodeConfig(data []byte) (*smbintel.KeywordConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg smbintel.KeywordConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg.Version < 1 {
		return nil, fmt.Errorf("invalid version %d", cfg.Version)
	}
	for i, k := range cfg.Keywords {
		if k == nil || strings.TrimSpace(k.Term) == "" {
			return nil, fmt.Errorf("keyword %d: empty term", i)
		}
		if !k.Pool.Valid() {
			return nil, fmt.Errorf("keyword %q: unknown pool %q", k.Term, k.Pool)
		}
	}
	if cfg.Settings == (smbintel.KeywordSettings{}) {
		cfg.Settings = smbintel.DefaultKeywordSettings()
	}
	return &cfg, nil
}

func encodeConfig(cfg *smbintel.KeywordConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeAtomic writes data to a temporary file next to path and renames it
// into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

package snapshot

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"shaderrefl/internal/project"
)

// DiskCache keeps msgpack snapshots under a cache directory.
// Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// OpenDiskCache opens $XDG_CACHE_HOME/<app>, falling back to ~/.cache.
func OpenDiskCache(app string) (*DiskCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDiskCacheAt(filepath.Join(base, app))
}

// OpenDiskCacheAt opens a cache rooted at dir.
func OpenDiskCacheAt(dir string) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *DiskCache) Dir() string { return c.dir }

// Key digests the description contents, the target and the schema.
func Key(contents project.Digest, target string) project.Digest {
	h := sha256.New()
	_, _ = h.Write(contents[:])
	_, _ = h.Write([]byte(target))
	_, _ = h.Write([]byte{0})
	_ = binary.Write(h, binary.LittleEndian, SchemaVersion)
	var out project.Digest
	copy(out[:], h.Sum(nil))
	return out
}

func (c *DiskCache) pathFor(key project.Digest) string {
	return filepath.Join(c.dir, "snapshots", hex.EncodeToString(key[:])+".mp")
}

// Put stores s under key, replacing any previous entry atomically.
func (c *DiskCache) Put(key project.Digest, s *Snapshot) (err error) {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err = os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()

	if err = s.Encode(f, FormatMsgpack); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get loads the snapshot stored under key. Entries of another schema
// count as misses.
func (c *DiskCache) Get(key project.Digest) (*Snapshot, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	s, err := Decode(f, FormatMsgpack)
	switch {
	case errors.Is(err, ErrSchema):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return s, true, nil
}

// DropAll removes every entry.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	return os.RemoveAll(old)
}

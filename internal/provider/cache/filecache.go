package cache

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// fileEntry is the on-disk record for one cache key.
type fileEntry struct {
	Value     json.RawMessage `json:"value,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	TTLSec    int64           `json:"ttl_sec"`
	Negative  bool            `json:"negative,omitempty"`
}

// File is a Cache persisted as one JSON file per key. Persistence is a
// durability optimization: a cold process reuses still-valid entries instead
// of refetching. Writes go through a temp file and rename so readers never
// observe a torn entry.
type File struct {
	dir string
}

// NewFile opens (creating if needed) a file cache under dir. An empty dir
// resolves to the user cache directory, e.g. ~/.cache/findata.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		dir = filepath.Join(xdg.CacheHome, "findata")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *File) Get(key string) ([]byte, bool, bool) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		return nil, false, false
	}
	var e fileEntry
	if err := json.Unmarshal(data, &e); err != nil {
		// Unreadable entries are treated as misses and cleaned up.
		os.Remove(f.path(key))
		return nil, false, false
	}
	if e.TTLSec > 0 && time.Since(e.CreatedAt) >= time.Duration(e.TTLSec)*time.Second {
		os.Remove(f.path(key))
		return nil, false, false
	}
	if e.Negative {
		return nil, true, true
	}
	return e.Value, true, false
}

func (f *File) PutPositive(key string, value []byte, ttl time.Duration) {
	f.write(key, fileEntry{Value: value, CreatedAt: time.Now(), TTLSec: int64(ttl.Seconds())})
}

func (f *File) PutNegative(key string, ttl time.Duration) {
	f.write(key, fileEntry{CreatedAt: time.Now(), TTLSec: int64(ttl.Seconds()), Negative: true})
}

func (f *File) Invalidate(key string) {
	os.Remove(f.path(key))
}

// write is best-effort: a failed cache write must never fail the fetch that
// produced the value.
func (f *File) write(key string, e fileEntry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	path := f.path(key)
	tmp := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
	}
}

// PruneNegative removes expired negative entries. Run once at startup so a
// long-lived cache directory does not accumulate stale failure markers.
func (f *File) PruneNegative() int {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0
	}
	pruned := 0
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		path := filepath.Join(f.dir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var e fileEntry
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		if !e.Negative {
			continue
		}
		if e.TTLSec > 0 && time.Since(e.CreatedAt) >= time.Duration(e.TTLSec)*time.Second {
			if os.Remove(path) == nil {
				pruned++
			}
		}
	}
	return pruned
}

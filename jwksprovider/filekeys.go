package jwksprovider

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// fileKeys serves verification keys from a JWKS document on disk, reloading
// it when the file changes. Key rotation then needs no process restart.
type fileKeys struct {
	path    string
	watcher *fsnotify.Watcher

	mu  sync.RWMutex
	set jose.JSONWebKeySet
}

func newFileKeys(path string) (*fileKeys, error) {
	f := &fileKeys{path: path}
	if err := f.load(); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		// Keys were loaded; hot reload is best-effort.
		slog.Debug("jwksprovider: fsnotify unavailable", slog.String("err", err.Error()))
		return f, nil
	}
	// Watch the directory, not the file: editors and secret mounts replace
	// files atomically, which drops a direct file watch.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		slog.Debug("jwksprovider: watch failed", slog.String("err", err.Error()))
		return f, nil
	}
	f.watcher = w
	go f.watch()
	return f, nil
}

func (f *fileKeys) watch() {
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := f.load(); err != nil {
				// Keep serving the previous key set.
				slog.Warn("jwksprovider: jwks reload failed", slog.String("err", err.Error()))
				continue
			}
			slog.Info("jwksprovider: jwks reloaded", slog.String("path", f.path))
		case _, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (f *fileKeys) load() error {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("jwksprovider: read jwks file: %w", err)
	}
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(b, &set); err != nil {
		return fmt.Errorf("jwksprovider: parse jwks file: %w", err)
	}
	if len(set.Keys) == 0 {
		return fmt.Errorf("jwksprovider: jwks file %s holds no keys", f.path)
	}
	f.mu.Lock()
	f.set = set
	f.mu.Unlock()
	return nil
}

// keyfunc resolves the verification key for a parsed (not yet verified)
// token by kid. A token without a kid matches a single-key set only.
func (f *fileKeys) keyfunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)

	f.mu.RLock()
	defer f.mu.RUnlock()

	if kid == "" {
		if len(f.set.Keys) == 1 {
			return f.set.Keys[0].Key, nil
		}
		return nil, fmt.Errorf("token has no kid and key set holds %d keys", len(f.set.Keys))
	}
	for _, k := range f.set.Keys {
		if k.KeyID == kid {
			return k.Key, nil
		}
	}
	return nil, fmt.Errorf("no key for kid %q", kid)
}

func (f *fileKeys) Close() error {
	if f.watcher != nil {
		return f.watcher.Close()
	}
	return nil
}

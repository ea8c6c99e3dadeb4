package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/rs/zerolog/log"
)

var (
	_ Storage      = (*File)(nil)
	_ ChangeSource = (*File)(nil)
)

// File stores one file per key in a directory. Writes are atomic (temp file
// plus rename) so readers in other processes never see a partial value.
type File struct {
	dir string
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, apperrors.Wrapf(err, "create storage dir %s", dir)
	}
	return &File{dir: dir}, nil
}

func (f *File) Dir() string {
	return f.dir
}

func (f *File) Get(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return "", apperrors.Wrapf(apperrors.ErrKeyNotFound, "key %q", key)
	}
	if err != nil {
		return "", apperrors.Wrapf(err, "read key %q", key)
	}
	return string(data), nil
}

func (f *File) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+key+".tmp-*")
	if err != nil {
		return apperrors.Wrapf(err, "create temp file for %q", key)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return apperrors.Wrapf(err, "write key %q", key)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return apperrors.Wrapf(err, "chmod key %q", key)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrapf(err, "close key %q", key)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		return apperrors.Wrapf(err, "rename key %q", key)
	}
	return nil
}

func (f *File) Remove(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrapf(err, "remove key %q", key)
	}
	return nil
}

// Subscribe watches the directory with fsnotify and reports every key file
// that is created, written, renamed or removed by any process.
func (f *File) Subscribe(fn func(Change)) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperrors.Wrapf(err, "create watcher")
	}
	if err := watcher.Add(f.dir); err != nil {
		watcher.Close()
		return nil, apperrors.Wrapf(err, "watch %s", f.dir)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				key := filepath.Base(event.Name)
				if strings.HasPrefix(key, ".") || ValidateKey(key) != nil {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
					fn(Change{Key: key})
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Err(err).Str("dir", f.dir).Msg("storage watcher error")
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			if err := watcher.Close(); err != nil {
				log.Err(err).Str("dir", f.dir).Msg("Failed to close storage watcher")
			}
		})
	}, nil
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, key)
}

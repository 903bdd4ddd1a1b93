package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/flagvane/flagvane/internal/models"
)

// FileStore serves snapshots from an exported snapshot document on
// disk. It is the offline shape: an SDK host fetches the document once
// from a server and evaluates locally with no connectivity.
//
// The file's directory is watched with fsnotify; edits are re-parsed
// eagerly so the next LoadSnapshot sees them without waiting for a
// filesystem read. A document that fails to parse or validate is
// rejected and the previously loaded flags stay in effect.
type FileStore struct {
	path string
	log  zerolog.Logger

	mu    sync.RWMutex
	flags []models.Flag

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileStore reads the snapshot document at path and starts watching
// it for changes. The initial read must succeed; later re-reads are
// best effort.
func NewFileStore(path string, log zerolog.Logger) (*FileStore, error) {
	s := &FileStore{
		path: path,
		log:  log.With().Str("component", "file_store").Str("path", path).Logger(),
		done: make(chan struct{}),
	}

	if err := s.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory, not the file: editors and atomic-rename
	// writers replace the inode, which drops a file-level watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	s.watcher = watcher
	go s.watch()

	return s, nil
}

// LoadSnapshot returns the most recently parsed flag set.
func (s *FileStore) LoadSnapshot(ctx context.Context) ([]models.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Flag, len(s.flags))
	for i, f := range s.flags {
		out[i] = copyFlag(f)
	}
	return out, nil
}

// Close stops the watcher.
func (s *FileStore) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *FileStore) watch() {
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.reload(); err != nil {
				s.log.Error().Err(err).Msg("snapshot file changed but reload failed, keeping previous flags")
				continue
			}
			s.log.Info().Msg("snapshot file reloaded")
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Error().Err(err).Msg("snapshot file watcher error")
		}
	}
}

func (s *FileStore) reload() error {
	blob, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read snapshot file: %w", err)
	}

	flags, err := ParseSnapshotDocument(blob)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.flags = flags
	s.mu.Unlock()
	return nil
}

// ParseSnapshotDocument decodes and validates an exported snapshot
// document. A bare JSON array of flags is accepted as well, for
// hand-written fixtures.
func ParseSnapshotDocument(blob []byte) ([]models.Flag, error) {
	var doc models.SnapshotDocument
	if err := json.Unmarshal(blob, &doc); err != nil {
		var flags []models.Flag
		if arrErr := json.Unmarshal(blob, &flags); arrErr != nil {
			return nil, fmt.Errorf("parse snapshot document: %w", err)
		}
		doc.Flags = flags
	}
	if err := models.ValidateFlags(doc.Flags); err != nil {
		return nil, err
	}
	return doc.Flags, nil
}

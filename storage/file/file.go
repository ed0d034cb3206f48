// Package file keeps session values in a single JSON document so separate
// processes on one machine share a session.
package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// document is the file's content. Generation is minted whenever the file is
// created afresh, since Version then starts again from 1.
type document struct {
	Generation string            `json:"generation"`
	Version    uint64            `json:"version"`
	Origin     string            `json:"origin"`
	Values     map[string]string `json:"values"`
}

var _ storage.Store = (*Store)(nil)

type Store struct {
	fs     afero.Fs
	path   string
	origin string
	logger zerolog.Logger

	mu       sync.Mutex
	closed   bool
	watchers []*fsnotify.Watcher
}

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New opens the document at path on fs, creating its directory if needed.
// Watch needs fs to be backed by the OS filesystem.
func New(fs afero.Fs, path string, options ...Option) (*Store, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[file.New] MkdirAll")
	}
	s := &Store{
		fs:     fs,
		path:   path,
		origin: storage.NewOrigin(),
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *Store) Origin() string {
	return s.origin
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, autherrors.ErrClosed
	}

	doc, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	return s.update(func(values map[string]string) {
		values[key] = value
	})
}

func (s *Store) Delete(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.update(func(values map[string]string) {
		for _, k := range keys {
			delete(values, k)
		}
	})
}

// Generation identifies the current incarnation of the document, empty
// before the first write.
func (s *Store) Generation() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return "", err
	}
	return doc.Generation, nil
}

// Version is the write counter stored in the document.
func (s *Store) Version() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.read()
	if err != nil {
		return 0, err
	}
	return doc.Version, nil
}

func (s *Store) update(apply func(values map[string]string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return autherrors.ErrClosed
	}

	doc, err := s.read()
	if err != nil {
		return err
	}
	apply(doc.Values)
	if doc.Generation == "" {
		doc.Generation = uuid.New().String()
	}
	doc.Version++
	doc.Origin = s.origin
	return s.write(doc)
}

func (s *Store) read() (document, error) {
	doc := document{Values: map[string]string{}}
	b, err := afero.ReadFile(s.fs, s.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, errors.Wrap(err, "[Store.read] ReadFile")
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("discarding corrupt session document")
		return document{Values: map[string]string{}}, nil
	}
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	return doc, nil
}

// write replaces the document atomically so watchers never read half a file.
func (s *Store) write(doc document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "[Store.write] json.Marshal")
	}
	tmp := s.path + ".tmp-" + s.origin
	if err := afero.WriteFile(s.fs, tmp, b, 0o600); err != nil {
		return errors.Wrap(err, "[Store.write] WriteFile")
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "[Store.write] Rename")
	}
	return nil
}

// Watch reports document rewrites by other Stores. The key is unknown, so
// Change.Key is always empty.
func (s *Store) Watch(fn func(storage.Change)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, autherrors.ErrClosed
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "[Store.Watch] NewWatcher")
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return nil, errors.Wrap(err, "[Store.Watch] Add")
	}
	s.watchers = append(s.watchers, w)

	go s.watchLoop(w, fn)

	var once sync.Once
	return func() {
		once.Do(func() { _ = w.Close() })
	}, nil
}

func (s *Store) watchLoop(w *fsnotify.Watcher, fn func(storage.Change)) {
	base := filepath.Base(s.path)
	var (
		last       uint64
		generation string
	)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Has(fsnotify.Remove) {
				last, generation = 0, ""
				fn(storage.Change{})
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}

			s.mu.Lock()
			doc, err := s.read()
			s.mu.Unlock()
			if err != nil {
				s.logger.Error().Err(err).Msg("reading changed session document")
				continue
			}
			if doc.Generation != generation {
				last, generation = 0, doc.Generation
			}
			if doc.Origin == s.origin || doc.Version <= last {
				continue
			}
			last = doc.Version
			fn(storage.Change{Version: doc.Version, Generation: doc.Generation, Origin: doc.Origin})

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Error().Err(err).Str("path", s.path).Msg("session document watcher")
		}
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	for _, w := range s.watchers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.watchers = nil
	return firstErr
}

// Package memory is an in-process repository, used where no filesystem should be touched.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/mitchellh/copystructure"
	"github.com/pkg/errors"
)

const scheme = "memory://"

// Store keeps every entity in maps guarded by a single mutex.
// Texts are copied on the way in and out so callers never share backing arrays.
type Store struct {
	mu        sync.RWMutex
	baselines map[model.Device]model.ConfigText
	latest    map[model.Device]model.ConfigText
	archives  map[string]model.ConfigText
	artifacts map[string]string

	// FailWrites makes every write return model.ErrStorageFailure.
	FailWrites bool
}

func New() *Store {
	return &Store{
		baselines: map[model.Device]model.ConfigText{},
		latest:    map[model.Device]model.ConfigText{},
		archives:  map[string]model.ConfigText{},
		artifacts: map[string]string{},
	}
}

func clone(text model.ConfigText) model.ConfigText {
	copied, err := copystructure.Copy(text)
	if err != nil {
		return append(model.ConfigText(nil), text...)
	}

	out, _ := copied.(model.ConfigText)

	return out
}

func (s *Store) checkWrite(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(model.ErrStorageFailure, err.Error())
	}

	if s.FailWrites {
		return errors.Wrap(model.ErrStorageFailure, "memory store writes disabled")
	}

	return nil
}

func (s *Store) LoadBaseline(_ context.Context, device model.Device) (model.ConfigText, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text, ok := s.baselines[device]
	if !ok {
		return nil, errors.Wrapf(model.ErrBaselineMissing, "device %s", device)
	}

	return clone(text), nil
}

func (s *Store) SaveBaseline(ctx context.Context, device model.Device, text model.ConfigText) (string, error) {
	if err := s.checkWrite(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.baselines[device] = clone(text)

	return scheme + "golden/" + device.String() + ".cfg", nil
}

func (s *Store) WriteLatest(ctx context.Context, device model.Device, text model.ConfigText) (string, error) {
	if err := s.checkWrite(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest[device] = clone(text)

	return scheme + "running/" + device.String() + ".cfg", nil
}

func (s *Store) LoadLatest(_ context.Context, device model.Device) (model.ConfigText, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	text, ok := s.latest[device]
	if !ok {
		return nil, errors.Wrapf(model.ErrSnapshotMissing, "device %s", device)
	}

	return clone(text), nil
}

func (s *Store) Archive(ctx context.Context, device model.Device, text model.ConfigText, ts time.Time) (string, error) {
	if err := s.checkWrite(ctx); err != nil {
		return "", err
	}

	path := scheme + "backups/" + device.String() + "_" + model.FormatTimestamp(ts) + ".cfg"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.archives[path]; ok {
		return "", errors.Wrapf(model.ErrStorageFailure, "%s: %s", path, model.ErrArtifactExists)
	}

	s.archives[path] = clone(text)

	return path, nil
}

func (s *Store) WriteArtifact(ctx context.Context, device model.Device, rendered string, ts time.Time) (string, error) {
	if err := s.checkWrite(ctx); err != nil {
		return "", err
	}

	path := scheme + "diffs/" + device.String() + "_" + model.FormatTimestamp(ts) + ".patch"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.artifacts[path]; ok {
		return "", errors.Wrapf(model.ErrStorageFailure, "%s: %s", path, model.ErrArtifactExists)
	}

	s.artifacts[path] = rendered

	return path, nil
}

// Artifact returns the diff stored at path.
func (s *Store) Artifact(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rendered, ok := s.artifacts[path]

	return rendered, ok
}

// ArtifactPaths lists stored diff artifacts in name order.
func (s *Store) ArtifactPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedKeys(s.artifacts)
}

// ArchivePaths lists archived snapshots in name order.
func (s *Store) ArchivePaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedKeys(s.archives)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Package filesystem stores golden baselines, running snapshots and diff artifacts as plain files.
//
// Layout:
//
//	<golden_dir>/<device>.cfg
//	<running_dir>/<device>.cfg
//	<backup_dir>/<device>_<timestamp>.cfg
//	<diff_dir>/<device>_<timestamp>.patch
package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/metal-toolbox/goldencfg/internal/configuration"
	"github.com/metal-toolbox/goldencfg/internal/keylock"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/pkg/errors"
)

const (
	configExt = ".cfg"
	patchExt  = ".patch"
)

// Store is a filesystem backed repository. Writes are serialized per file.
type Store struct {
	opts  configuration.StorageOptions
	locks *keylock.Locker
}

// New returns a Store over the configured directories.
func New(opts *configuration.StorageOptions) (*Store, error) {
	if opts == nil {
		return nil, errors.Wrap(ErrStoreConfig, "no storage options")
	}

	for name, dir := range map[string]string{
		"golden_dir":  opts.GoldenDir,
		"running_dir": opts.RunningDir,
		"backup_dir":  opts.BackupDir,
		"diff_dir":    opts.DiffDir,
	} {
		if dir == "" {
			return nil, errors.Wrap(ErrStoreConfig, name+" not defined")
		}
	}

	return &Store{
		opts:  *opts,
		locks: keylock.New(),
	}, nil
}

// fileName maps a device to its file name stem. The mapping is the identity, names that
// are not a single plain path element are rejected so no two devices share a file.
func fileName(device model.Device) (string, error) {
	name := device.String()

	switch {
	case name == "", name == ".", name == "..":
		return "", errors.Wrapf(ErrInvalidDeviceName, "%q", device)
	case strings.TrimSpace(name) != name:
		return "", errors.Wrapf(ErrInvalidDeviceName, "%q: surrounding whitespace", device)
	case strings.ContainsAny(name, "/\\\x00"):
		return "", errors.Wrapf(ErrInvalidDeviceName, "%q: path separator", device)
	}

	return name, nil
}

// lock serializes writers of the file at path.
func (s *Store) lock(ctx context.Context, path string) (func(), error) {
	unlock, err := s.locks.LockContext(ctx, path)
	if err != nil {
		return nil, errors.Wrap(model.ErrStorageFailure, err.Error())
	}

	return unlock, nil
}

func (s *Store) write(ctx context.Context, device model.Device, dir, name string, data []byte, noClobber bool) (string, error) {
	unlock, err := s.lock(ctx, filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer unlock()

	path, err := writeFileAtomic(ctx, dir, name, data, noClobber)
	if err != nil {
		if errors.Is(err, model.ErrArtifactExists) {
			return "", errors.Wrap(model.ErrStorageFailure, err.Error())
		}

		return "", errors.Wrapf(model.ErrStorageFailure, "device %s: %s", device, err.Error())
	}

	return path, nil
}

func read(path string) (model.ConfigText, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}

		return nil, false, errors.Wrap(model.ErrStorageFailure, err.Error())
	}

	return model.ParseConfigText(string(data)), true, nil
}

// BaselinePath returns where the golden configuration of device is kept.
func (s *Store) BaselinePath(device model.Device) (string, error) {
	name, err := fileName(device)
	if err != nil {
		return "", err
	}

	return filepath.Join(s.opts.GoldenDir, name+configExt), nil
}

// LatestPath returns where the latest running configuration of device is kept.
func (s *Store) LatestPath(device model.Device) (string, error) {
	name, err := fileName(device)
	if err != nil {
		return "", err
	}

	return filepath.Join(s.opts.RunningDir, name+configExt), nil
}

func (s *Store) LoadBaseline(_ context.Context, device model.Device) (model.ConfigText, error) {
	path, err := s.BaselinePath(device)
	if err != nil {
		return nil, err
	}

	text, ok, err := read(path)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, errors.Wrapf(model.ErrBaselineMissing, "device %s: %s", device, path)
	}

	return text, nil
}

func (s *Store) SaveBaseline(ctx context.Context, device model.Device, text model.ConfigText) (string, error) {
	name, err := fileName(device)
	if err != nil {
		return "", err
	}

	return s.write(ctx, device, s.opts.GoldenDir, name+configExt, []byte(text.String()), false)
}

func (s *Store) WriteLatest(ctx context.Context, device model.Device, text model.ConfigText) (string, error) {
	name, err := fileName(device)
	if err != nil {
		return "", err
	}

	return s.write(ctx, device, s.opts.RunningDir, name+configExt, []byte(text.String()), false)
}

func (s *Store) LoadLatest(_ context.Context, device model.Device) (model.ConfigText, error) {
	path, err := s.LatestPath(device)
	if err != nil {
		return nil, err
	}

	text, ok, err := read(path)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, errors.Wrapf(model.ErrSnapshotMissing, "device %s: %s", device, path)
	}

	return text, nil
}

func (s *Store) Archive(ctx context.Context, device model.Device, text model.ConfigText, ts time.Time) (string, error) {
	name, err := fileName(device)
	if err != nil {
		return "", err
	}

	name = name + "_" + model.FormatTimestamp(ts) + configExt

	return s.write(ctx, device, s.opts.BackupDir, name, []byte(text.String()), true)
}

func (s *Store) WriteArtifact(ctx context.Context, device model.Device, rendered string, ts time.Time) (string, error) {
	name, err := fileName(device)
	if err != nil {
		return "", err
	}

	name = name + "_" + model.FormatTimestamp(ts) + patchExt

	return s.write(ctx, device, s.opts.DiffDir, name, []byte(rendered), true)
}

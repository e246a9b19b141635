package filesystem

import (
	"context"
	"os"
	"path/filepath"

	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/pkg/errors"
)

const (
	dirMode  = 0o755
	fileMode = 0o644
)

// writeFileAtomic writes data to dir/name through a temporary file in the same directory.
// The final name only ever appears with complete content. With noClobber set an existing
// file is left untouched and model.ErrArtifactExists is returned.
func writeFileAtomic(ctx context.Context, dir, name string, data []byte, noClobber bool) (path string, err error) {
	if err = os.MkdirAll(dir, dirMode); err != nil {
		return "", err
	}

	path = filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", err
	}

	tmpName := tmp.Name()

	defer func() {
		// the temp file is always gone once we return, renamed or removed
		if rmErr := os.Remove(tmpName); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = rmErr
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}

	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return "", err
	}

	if err = tmp.Close(); err != nil {
		return "", err
	}

	if err = os.Chmod(tmpName, fileMode); err != nil {
		return "", err
	}

	// a cancelled run must not publish the file
	if err = ctx.Err(); err != nil {
		return "", err
	}

	if noClobber {
		if err = os.Link(tmpName, path); err != nil {
			if os.IsExist(err) {
				return "", errors.Wrap(model.ErrArtifactExists, path)
			}

			return "", err
		}
	} else if err = os.Rename(tmpName, path); err != nil {
		return "", err
	}

	syncDir(dir)

	return path, nil
}

// syncDir flushes the directory entry, errors are ignored as not every platform supports it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}

	_ = d.Sync()
	_ = d.Close()
}

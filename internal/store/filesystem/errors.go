package filesystem

import "github.com/pkg/errors"

var (
	ErrInvalidDeviceName = errors.New("invalid device name")
	ErrStoreConfig       = errors.New("filesystem store configuration error")
)

package device

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/pkg/errors"
)

// FileFetcher reads running configurations captured by external automation,
// one <device>.cfg per device in Dir.
type FileFetcher struct {
	Dir string
}

func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{Dir: dir}
}

func (f *FileFetcher) Fetch(ctx context.Context, device model.Device) (model.ConfigText, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(model.ErrFetchFailure, err.Error())
	}

	name := device.String()
	if strings.TrimSpace(name) != name || name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, errors.Wrapf(model.ErrFetchFailure, "invalid device name %q", device)
	}

	data, err := os.ReadFile(filepath.Join(f.Dir, name+".cfg"))
	if err != nil {
		return nil, errors.Wrapf(model.ErrFetchFailure, "device %s: %s", device, err.Error())
	}

	return model.ParseConfigText(string(data)), nil
}

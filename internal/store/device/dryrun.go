package device

import (
	"context"
	"sync"

	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/pkg/errors"
)

var (
	errDryRunUnknownDevice = errors.New("dryrun fetcher has no configuration for device")
	errDryRunInjected      = errors.New("dryrun fetcher injected failure")
)

// DryRunFetcher serves running configurations held in memory.
type DryRunFetcher struct {
	mu       sync.Mutex
	configs  map[model.Device]model.ConfigText
	failures map[model.Device]int
	calls    map[model.Device]int
}

func NewDryRunFetcher(configs map[model.Device]model.ConfigText) *DryRunFetcher {
	f := &DryRunFetcher{
		configs:  map[model.Device]model.ConfigText{},
		failures: map[model.Device]int{},
		calls:    map[model.Device]int{},
	}

	for dev, text := range configs {
		f.configs[dev] = append(model.ConfigText(nil), text...)
	}

	return f
}

// FailNext makes the next n fetches of dev fail.
func (f *DryRunFetcher) FailNext(dev model.Device, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures[dev] = n
}

// Calls returns how many times dev was fetched.
func (f *DryRunFetcher) Calls(dev model.Device) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[dev]
}

func (f *DryRunFetcher) Fetch(ctx context.Context, dev model.Device) (model.ConfigText, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(model.ErrFetchFailure, err.Error())
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[dev]++

	if f.failures[dev] > 0 {
		f.failures[dev]--
		return nil, errors.Wrapf(model.ErrFetchFailure, "device %s: %s", dev, errDryRunInjected)
	}

	text, ok := f.configs[dev]
	if !ok {
		return nil, errors.Wrapf(model.ErrFetchFailure, "device %s: %s", dev, errDryRunUnknownDevice)
	}

	return append(model.ConfigText(nil), text...), nil
}

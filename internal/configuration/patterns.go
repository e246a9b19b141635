package configuration

import (
	"github.com/metal-toolbox/goldencfg/internal/filter"
	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/mitchellh/copystructure"
	"github.com/pkg/errors"
)

// Patterns resolves the ignore pattern set of each device.
// Every set is compiled once when the Patterns are loaded.
type Patterns struct {
	defaults filter.PatternSet
	matcher  *filter.Matcher
	devices  map[model.Device]*filter.Matcher
}

// LoadPatterns merges the configured ignore patterns with the optional pattern file.
// Per device patterns from the file extend the default set for that device.
func (c *Configuration) LoadPatterns() (*Patterns, error) {
	defaults := filter.PatternSet(append([]string(nil), c.IgnorePatterns...))
	overrides := map[model.Device]filter.PatternSet{}

	if c.IgnorePatternsFile != "" {
		pf, err := filter.LoadPatternFile(c.IgnorePatternsFile)
		if err != nil {
			return nil, errors.Wrap(model.ErrConfig, err.Error())
		}

		defaults = append(defaults, pf.Default...)

		for device, set := range pf.Devices {
			overrides[device] = set
		}
	}

	return NewPatterns(defaults, overrides)
}

// NewPatterns compiles a default set and the per device extensions of it.
func NewPatterns(defaults filter.PatternSet, overrides map[model.Device]filter.PatternSet) (*Patterns, error) {
	matcher, err := filter.Compile(defaults)
	if err != nil {
		return nil, errors.Wrap(model.ErrConfig, err.Error())
	}

	p := &Patterns{
		defaults: defaults,
		matcher:  matcher,
		devices:  make(map[model.Device]*filter.Matcher, len(overrides)),
	}

	for device, extra := range overrides {
		set, err := p.extend(extra)
		if err != nil {
			return nil, err
		}

		m, err := filter.Compile(set)
		if err != nil {
			return nil, errors.Wrapf(model.ErrConfig, "device %s: %s", device, err.Error())
		}

		p.devices[device] = m
	}

	return p, nil
}

// extend returns a copy of the default set with extra appended, the defaults are never shared.
func (p *Patterns) extend(extra filter.PatternSet) (filter.PatternSet, error) {
	copied, err := copystructure.Copy(p.defaults)
	if err != nil {
		return nil, errors.Wrap(err, "failed to copy default ignore patterns")
	}

	set, _ := copied.(filter.PatternSet)

	return append(set, extra...), nil
}

// MatcherFor returns the compiled ignore matcher for device.
func (p *Patterns) MatcherFor(device model.Device) *filter.Matcher {
	if p == nil {
		return nil
	}

	if m, ok := p.devices[device]; ok {
		return m
	}

	return p.matcher
}

// For returns the ignore pattern set applied to device.
func (p *Patterns) For(device model.Device) filter.PatternSet {
	return p.MatcherFor(device).Patterns()
}

package filter

import (
	"os"

	"github.com/metal-toolbox/goldencfg/internal/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// PatternFile is the on-disk layout of an ignore pattern file.
//
//	default:
//	  - "^! Last configuration change"
//	devices:
//	  R1-LAB:
//	    - "^ntp clock-period"
type PatternFile struct {
	Default PatternSet                  `yaml:"default"`
	Devices map[model.Device]PatternSet `yaml:"devices"`
}

// LoadPatternFile reads and validates a YAML pattern file.
func LoadPatternFile(path string) (*PatternFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read ignore pattern file")
	}

	pf := &PatternFile{}
	if err := yaml.Unmarshal(data, pf); err != nil {
		return nil, errors.Wrap(err, "failed to parse ignore pattern file")
	}

	if _, err := Compile(pf.Default); err != nil {
		return nil, err
	}

	for device, set := range pf.Devices {
		if _, err := Compile(set); err != nil {
			return nil, errors.Wrapf(err, "device %s", device)
		}
	}

	return pf, nil
}

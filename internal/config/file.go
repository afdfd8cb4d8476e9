package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PetoAdam/homenavi/arm-bridge/internal/component"
)

// File is the optional YAML configuration named by ARM_BRIDGE_CONFIG. When
// it lists arms they replace ARM_BRIDGE_ARMS.
//
//	arms:
//	  - name: PSM1
//	    period: 5ms
//	    config: psm1.json
//	recorder:
//	  period: 200ms
type File struct {
	Arms     []FileArm `yaml:"arms"`
	Recorder struct {
		Period string `yaml:"period"`
	} `yaml:"recorder"`
}

type FileArm struct {
	Name   string `yaml:"name"`
	Period string `yaml:"period"`
	Config string `yaml:"config"`
}

func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &f, nil
}

func (f *File) apply(cfg *Config, defaultPeriod time.Duration) error {
	if len(f.Arms) > 0 {
		arms := make([]ArmConfig, 0, len(f.Arms))
		seen := map[string]bool{}
		for i, a := range f.Arms {
			name := strings.TrimSpace(a.Name)
			if err := ValidateArmName(name); err != nil {
				return fmt.Errorf("arm %d: %w", i, err)
			}
			if seen[name] {
				return fmt.Errorf("arm %q listed twice", name)
			}
			seen[name] = true
			period := defaultPeriod
			if strings.TrimSpace(a.Period) != "" {
				d, err := time.ParseDuration(a.Period)
				if err != nil {
					return fmt.Errorf("arm %q period: %w", name, err)
				}
				if d <= 0 {
					return errors.New("arm " + name + " period must be positive")
				}
				period = d
			}
			arms = append(arms, ArmConfig{TaskArg: component.TaskArg{Name: name, Period: period}, ConfigFile: a.Config})
		}
		cfg.Arms = arms
	}
	if p := strings.TrimSpace(f.Recorder.Period); p != "" {
		d, err := time.ParseDuration(p)
		if err != nil {
			return fmt.Errorf("recorder period: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("recorder period must be positive, got %s", p)
		}
		cfg.RecordPeriod = d
	}
	return nil
}

// Validate runs the same checks Load applies to the file.
func (f *File) Validate() error {
	var cfg Config
	return f.apply(&cfg, component.DefaultPeriod)
}

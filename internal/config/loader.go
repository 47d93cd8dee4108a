package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/coral-sampler/internal/constants"
)

// Load builds the configuration in layers: defaults, then the YAML file at
// path, then environment overrides. A missing file is not an error when
// path is empty or the default file name; an explicitly named file must
// exist. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = constants.ConfigFile
	}

	//nolint:gosec // G304: Path is chosen by the operator.
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := LoadFromEnv(cfg, constants.EnvPrefix); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

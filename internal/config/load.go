package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	coreerrors "crystelf-core/internal/core/errors"
)

// DefaultFile is read when no path is given
const DefaultFile = "config.yaml"

// Load reads path over the defaults, applies environment overrides and validates
//
// A missing file is not an error; the defaults and environment still apply.
func Load(path string) (*Root, error) {
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with an explicit environment lookup
func LoadWith(path string, lookup LookupFunc) (*Root, error) {
	if path == "" {
		path = DefaultFile
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, cfg); err != nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeConfigError, "parse config file %q", path)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, coreerrors.Wrapf(err, coreerrors.CodeConfigError, "read config file %q", path)
	}

	applyEnv(cfg, lookup)
	if err := cfg.resolvePaths(); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeConfigError, "resolve paths")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Root) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

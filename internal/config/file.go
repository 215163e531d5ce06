package config

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Load - reads configuration from TOML file.
// The file is expected to be complete, as written by Dump.
func Load(file string) (Configuration, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return Configuration{}, errors.Wrap(err, "config: can't read file")
	}
	return Parse(b)
}

// Parse - decodes configuration from TOML and validates it.
func Parse(b []byte) (Configuration, error) {
	c := Default()
	if err := toml.Unmarshal(b, &c); err != nil {
		return Configuration{}, errors.Wrap(err, "config: invalid TOML")
	}
	if err := c.Validate(); err != nil {
		return Configuration{}, err
	}
	return c, nil
}

// Marshal - encodes configuration to TOML.
func Marshal(c Configuration) ([]byte, error) {
	b, err := toml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "config: can't encode TOML")
	}
	return b, nil
}

// Dump - writes configuration into TOML file.
func Dump(c Configuration, file string) error {
	b, err := Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(file, b, 0644); err != nil {
		return errors.Wrap(err, "config: can't write file")
	}
	return nil
}

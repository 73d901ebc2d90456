package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSeed reads the configuration a fresh gateway starts with from a YAML file
func LoadSeed(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read seed file: %w", err)
	}

	var req ConfigRequest
	if err := yaml.Unmarshal(b, &req); err != nil {
		return Config{}, fmt.Errorf("unable to parse seed file %s: %w", path, err)
	}

	if err := req.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid seed file %s: %w", path, err)
	}

	c := req.Config()
	c.Normalize()
	return c, nil
}

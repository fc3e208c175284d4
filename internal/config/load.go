package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads settings from path. The format follows the file extension:
// .toml, .yaml, or .yml. A missing file is not an error; defaults are
// returned. Keys absent from the file keep their default values.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Settings{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes settings from data, using the extension of source to
// pick the format. The result is validated before it is returned.
func Parse(source string, data []byte) (Settings, error) {
	settings := Default()

	switch strings.ToLower(filepath.Ext(source)) {
	case ".toml":
		if err := toml.Unmarshal(data, &settings); err != nil {
			return Settings{}, &ParseError{Path: source, Message: err.Error(), Err: err}
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return Settings{}, &ParseError{Path: source, Message: err.Error(), Err: err}
		}
	default:
		return Settings{}, fmt.Errorf("unsupported config format %q (want .toml, .yaml, or .yml)", filepath.Ext(source))
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, fmt.Errorf("config file %s: %w", source, err)
	}
	return settings, nil
}

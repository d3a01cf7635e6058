package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks the environment variables that override the file.
const EnvPrefix = "CROISSANT_"

const maxConfigFileSize = 1024 * 1024

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides, then validates.
//
// Precedence (highest to lowest):
//  1. Environment variables (CROISSANT_ROBOT_LOOP_HZ, CROISSANT_LOG_LEVEL, ...)
//  2. YAML file
//  3. Default()
//
// A missing file is not an error. Environment variables map onto
// section.field by splitting on the first underscore after the prefix:
//
//	CROISSANT_ROBOT_LOOP_HZ -> robot.loop_hz
//	CROISSANT_AUTO_MODE     -> auto.mode
//
// Nested sections such as auto.paths can only be set from the file.
func Load(path string) (*Config, error) {
	var content []byte
	if path != "" {
		b, err := readFile(path)
		if err != nil {
			return nil, err
		}
		content = b
	}
	return load(content)
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s is %d bytes, limit is %d", path, info.Size(), maxConfigFileSize)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return b, nil
}

// load is Load without the filesystem.
func load(content []byte) (*Config, error) {
	k := koanf.New(".")

	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps CROISSANT_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

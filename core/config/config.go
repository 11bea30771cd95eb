// Package config holds the user's shell settings.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

//go:embed default/config.yaml
var defaultConfigData []byte

const (
	ConfigurationName = "config.yaml"
	AppDirName        = "pgsh"

	FlagTracebacks  = "tracebacks"
	FlagNotifyColor = "notify-color"
)

// KnownFlags lists every flag the set builtin accepts.
var KnownFlags = []string{FlagTracebacks, FlagNotifyColor}

type Configuration struct {
	Prompt       string          `json:"prompt" validate:"required"`
	HistoryFile  string          `json:"history_file"`
	HistoryLimit int             `json:"history_limit" validate:"gte=-1"`
	RCFile       string          `json:"rc_file"`
	Color        bool            `json:"color"`
	Flags        map[string]bool `json:"flags" validate:"dive,keys,oneof=tracebacks notify-color,endkeys"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

// Flag returns the initial value of a set flag.
func (c *Configuration) Flag(name string) bool {
	return c.Flags[name]
}

// DefaultPath is where the configuration lives when --config isn't given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ConfigurationName
	}
	return filepath.Join(dir, AppDirName, ConfigurationName)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Default returns the built-in configuration.
func Default() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// Load reads the configuration at path on top of the defaults. A missing
// file yields the defaults.
func Load(fsys afero.Fs, path string) (*Configuration, error) {
	out := Default()

	contents, err := afero.ReadFile(fsys, path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return out, nil
	case err != nil:
		return nil, err
	}

	if err := yaml.UnmarshalStrict(contents, out); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Initialize writes the default configuration to path unless a file is
// already there, then loads it.
func Initialize(fsys afero.Fs, path string, logger *log.Logger) (*Configuration, error) {
	exists, err := afero.Exists(fsys, path)
	if err != nil {
		return nil, err
	}

	if exists {
		logger.Printf("Configuration already exists at %q, leaving it alone.", path)
	} else {
		logger.Printf("Writing default configuration to %q", path)
		if err := fsys.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, err
		}
		if err := afero.WriteFile(fsys, path, defaultConfigData, 0600); err != nil {
			return nil, err
		}
	}

	return Load(fsys, path)
}

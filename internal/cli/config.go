// Package cli holds what the aoe2rec command line tools share: the
// optional ini configuration file and logger setup.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/reallyoldfogie/aoe2rec-go/aoe2rec/merge"
)

// DefaultConfigFile is read from the working directory when no -config
// flag is given. A missing default file is not an error.
const DefaultConfigFile = "aoe2rec.ini"

type Config struct {
	LogLevel  string
	LogFormat string
	Merge     merge.Options
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Merge:     merge.DefaultOptions(),
	}
}

// Load reads path over the defaults and then applies LOG_LEVEL and
// LOG_FORMAT from the environment. An empty path means DefaultConfigFile,
// which may be absent.
func Load(path string) (Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	f, err := ini.Load(path)
	switch {
	case err == nil:
		if err := apply(&cfg, f); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("load config: %w", err)
	}

	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	return cfg, nil
}

func apply(cfg *Config, f *ini.File) error {
	logs := f.Section("log")
	cfg.LogLevel = logs.Key("level").MustString(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(logs.Key("format").MustString(cfg.LogFormat))

	m := f.Section("merge")
	if k, err := m.GetKey("window_ms"); err == nil {
		v, err := k.Uint()
		if err != nil {
			return fmt.Errorf("merge.window_ms: %w", err)
		}
		cfg.Merge.Window = uint32(v)
	}
	if k, err := m.GetKey("welcome"); err == nil {
		v, err := k.Bool()
		if err != nil {
			return fmt.Errorf("merge.welcome: %w", err)
		}
		cfg.Merge.Welcome = v
	}
	if m.HasKey("censor") {
		cfg.Merge.Censor = m.Key("censor").Strings(",")
	}
	return nil
}

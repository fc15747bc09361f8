package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/phsym/console-slog"
	"gopkg.in/yaml.v3"
)

// Config holds the settings read from the -c yaml file. Command line flags
// override them.
type Config struct {
	ForceCo64 bool `yaml:"forceco64"`
	// Stream sends local inputs through the range writer instead of loading
	// them into memory.
	Stream bool      `yaml:"stream"`
	Log    LogConfig `yaml:"log"`
	HTTP   struct {
		// Timeout bounds connecting and waiting for response headers. Reading
		// a response body is not limited.
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"http"`
}

// LogConfig configures the console logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	NoColor    bool   `yaml:"nocolor"`
	TimeFormat string `yaml:"timeformat"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config {
	var conf Config
	conf.Log.Level = "info"
	conf.Log.TimeFormat = "15:04:05.000"
	conf.HTTP.Timeout = 30 * time.Second
	return conf
}

// LoadConfig reads a yaml config file over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (Config, error) {
	conf := DefaultConfig()
	if path == "" {
		return conf, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return conf, err
	}
	defer f.Close()
	if err = yaml.NewDecoder(f).Decode(&conf); err != nil && !errors.Is(err, io.EOF) {
		return conf, err
	}
	return conf, nil
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(level string) (slog.Level, error) {
	var lv slog.LevelVar
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
	return lv.Level(), nil
}

// NewLogger returns a console logger writing to w.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	return slog.New(console.NewHandler(w, &console.HandlerOptions{
		Level:      level,
		NoColor:    c.NoColor,
		TimeFormat: c.TimeFormat,
	})), nil
}

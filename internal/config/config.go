// ABOUTME: Harness configuration loaded with viper
// ABOUTME: Defaults, optional YAML file and APTEST_ environment overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Configuration keys
const (
	KeyDefaultURL   = "player.default_url"
	KeyAutoStart    = "player.auto_start"
	KeyPresets      = "player.presets"
	KeyBackend      = "audio.backend"
	KeyPollInterval = "input.poll_interval"
	KeyLogLevel     = "log.level"
	KeyLogJSON      = "log.json"
	KeyLogFile      = "log.file"
)

const (
	appName = "aptest"

	// EnvPrefix prefixes every environment override, e.g. APTEST_AUDIO_BACKEND
	EnvPrefix = "APTEST"
	// EnvConfigFile names an explicit config file
	EnvConfigFile = "APTEST_CONFIG"
)

// EnvKeyReplacer maps configuration keys to environment variable names
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// DefaultURL is played at start-up when no argument is given
const DefaultURL = "http://www.audiocheck.net/Audio/audiocheck.net_putyourhands.mp3"

// DefaultPresets are the sources bound to keys 1-9
var DefaultPresets = []string{
	DefaultURL,
	"mmsh://streaming.radionz.co.nz/national-mbr",
	"rtsp://radionz-wowza.streamguys.com/national/national.stream",
	"http://radionz-ice.streamguys.com/national.mp3",
	"http://stream.radioactive.fm:8000/ractive",
	"http://live-aacplus-64.kexp.org/kexp64.aac",
	"./test48.ogg",
	"./test.mp3",
	"./test.ogg",
}

// LogConfig configures logging
type LogConfig struct {
	Level string
	JSON  bool
	File  string
}

// Config holds the harness settings
type Config struct {
	DefaultURL   string
	AutoStart    bool
	Presets      []string
	Backend      string
	PollInterval time.Duration
	Log          LogConfig

	// File is the config file that was read, empty when none
	File string
}

// Dir returns the directory searched for config.yaml
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, appName)
}

// Load reads the configuration from fs. A missing default config file is not an error;
// a missing file named by APTEST_CONFIG is.
func Load(fs afero.Fs) (Config, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("yaml")

	if path, ok := os.LookupEnv(EnvConfigFile); ok && path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if dir := Dir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()

	v.SetDefault(KeyDefaultURL, DefaultURL)
	v.SetDefault(KeyAutoStart, true)
	v.SetDefault(KeyPresets, DefaultPresets)
	v.SetDefault(KeyBackend, "malgo")
	v.SetDefault(KeyPollInterval, time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogJSON, false)
	v.SetDefault(KeyLogFile, "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Config{
		DefaultURL:   v.GetString(KeyDefaultURL),
		AutoStart:    v.GetBool(KeyAutoStart),
		Presets:      v.GetStringSlice(KeyPresets),
		Backend:      v.GetString(KeyBackend),
		PollInterval: v.GetDuration(KeyPollInterval),
		Log: LogConfig{
			Level: v.GetString(KeyLogLevel),
			JSON:  v.GetBool(KeyLogJSON),
			File:  v.GetString(KeyLogFile),
		},
		File: v.ConfigFileUsed(),
	}
	if cfg.File != "" {
		if ok, _ := afero.Exists(fs, cfg.File); !ok {
			cfg.File = ""
		}
	}

	if cfg.PollInterval <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %s", KeyPollInterval, cfg.PollInterval)
	}
	if len(cfg.Presets) > 9 {
		cfg.Presets = cfg.Presets[:9]
	}
	return cfg, nil
}

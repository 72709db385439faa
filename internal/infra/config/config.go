package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Releases maps a data release tag to the base URL of its server.
var Releases = map[string]string{
	"DR12": "http://dr12.sdss3.org",
}

type Config struct {
	Mirror MirrorConfig `mapstructure:"mirror" yaml:"mirror"`
	Finder FinderConfig `mapstructure:"finder" yaml:"finder"`
	Fetch  FetchConfig  `mapstructure:"fetch" yaml:"fetch"`
	Meta   MetaConfig   `mapstructure:"meta" yaml:"meta"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Events EventsConfig `mapstructure:"events" yaml:"events"`

	Port string `mapstructure:"port" yaml:"port"`
}

type MirrorConfig struct {
	Release   string        `mapstructure:"release" yaml:"release"`
	URLPrefix string        `mapstructure:"url_prefix" yaml:"url_prefix"`
	LocalRoot string        `mapstructure:"local_root" yaml:"local_root"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type FinderConfig struct {
	SASRoot      string `mapstructure:"sas_root" yaml:"sas_root"`
	ReduxVersion string `mapstructure:"redux_version" yaml:"redux_version"`
}

type FetchConfig struct {
	Workers     int           `mapstructure:"workers" yaml:"workers"`
	GracePeriod time.Duration `mapstructure:"grace_period" yaml:"grace_period"`
	KillTimeout time.Duration `mapstructure:"kill_timeout" yaml:"kill_timeout"`
	Progress    bool          `mapstructure:"progress" yaml:"progress"`
}

type MetaConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
	Lite   bool   `mapstructure:"lite" yaml:"lite"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	// DSN is a sqlite file path, or a postgres:// URL.
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type EventsConfig struct {
	RabbitMQURL string `mapstructure:"rabbitmq_url" yaml:"rabbitmq_url"`
	Exchange    string `mapstructure:"exchange" yaml:"exchange"`
}

// Load reads the config file at path. An empty path means "config.yaml if
// present, defaults otherwise"; an explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set Defaults
	v.SetDefault("port", "8080")
	v.SetDefault("mirror.release", "DR12")
	v.SetDefault("mirror.timeout", 10*time.Minute)
	v.SetDefault("fetch.workers", 4)
	v.SetDefault("fetch.grace_period", 2*time.Second)
	v.SetDefault("fetch.kill_timeout", 5*time.Second)
	v.SetDefault("fetch.progress", true)
	v.SetDefault("meta.lite", true)
	v.SetDefault("log.path", "bossfetch.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.dsn", "./bossfetch.db")
	v.SetDefault("events.exchange", "bossfetch.results")

	// Support Environment Variables
	v.SetEnvPrefix("BOSSFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The variables the bossdata tools have always used
	_ = v.BindEnv("mirror.local_root", "BOSSFETCH_MIRROR_LOCAL_ROOT", "BOSSDATA_ROOT")
	_ = v.BindEnv("finder.sas_root", "BOSSFETCH_FINDER_SAS_ROOT", "BOSS_SAS_ROOT")
	_ = v.BindEnv("finder.redux_version", "BOSSFETCH_FINDER_REDUX_VERSION", "BOSS_REDUX_VERSION")

	explicit := path != ""
	if !explicit {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Mirror.URLPrefix == "" {
		prefix, ok := Releases[strings.ToUpper(c.Mirror.Release)]
		if !ok {
			return fmt.Errorf("invalid release %q", c.Mirror.Release)
		}
		c.Mirror.URLPrefix = prefix
	}
	c.Mirror.URLPrefix = strings.TrimRight(c.Mirror.URLPrefix, "/")

	if c.Mirror.LocalRoot != "" && !strings.Contains(c.Mirror.LocalRoot, "://") {
		info, err := os.Stat(c.Mirror.LocalRoot)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("cannot use non-existent path %s as local root", c.Mirror.LocalRoot)
		}
	}

	if c.Fetch.Workers < 1 || c.Fetch.Workers > 5 {
		return fmt.Errorf("fetch.workers must be in [1,5], got %d", c.Fetch.Workers)
	}

	if c.Fetch.GracePeriod <= 0 {
		c.Fetch.GracePeriod = 2 * time.Second
	}

	if c.Fetch.KillTimeout <= 0 {
		c.Fetch.KillTimeout = 5 * time.Second
	}

	if c.Store.DSN == "" {
		return errors.New("store.dsn is required")
	}

	return nil
}

// RequireLocalRoot is checked by commands that actually write to the mirror.
func (c *Config) RequireLocalRoot() error {
	if c.Mirror.LocalRoot == "" {
		return errors.New("cannot mirror without a local root (try setting BOSSDATA_ROOT)")
	}
	return nil
}

// RequireFinder is checked by commands that resolve observations to paths.
func (c *Config) RequireFinder() error {
	if c.Finder.SASRoot == "" {
		return errors.New("no SAS root specified: try setting $BOSS_SAS_ROOT")
	}
	if c.Finder.ReduxVersion == "" {
		return errors.New("no redux version specified: try setting $BOSS_REDUX_VERSION")
	}
	return nil
}

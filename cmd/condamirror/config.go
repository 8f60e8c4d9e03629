package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ChannelConfig selects what to mirror from one upstream channel.
type ChannelConfig struct {
	URL     string   `mapstructure:"url" yaml:"url"`
	Include []string `mapstructure:"include" yaml:"include,omitempty"`
	Exclude []string `mapstructure:"exclude" yaml:"exclude,omitempty"`
}

// Config is the condamirror configuration file. Unknown keys are tolerated.
type Config struct {
	Subdirs        []string        `mapstructure:"subdirs" yaml:"subdirs"`
	Local          string          `mapstructure:"local" yaml:"local,omitempty"`
	Patches        string          `mapstructure:"patches" yaml:"patches"`
	PythonVersions []string        `mapstructure:"python_versions" yaml:"python_versions,omitempty"`
	Channels       []ChannelConfig `mapstructure:"channels" yaml:"channels"`
	Timeout        time.Duration   `mapstructure:"timeout" yaml:"-"`
	Concurrency    int             `mapstructure:"concurrency" yaml:"concurrency,omitempty"`
}

func loadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("patches", "patches")
	v.SetDefault("timeout", "30s")
	v.SetDefault("concurrency", 8)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Subdirs) == 0 {
		return Config{}, fmt.Errorf("%s: no subdirs configured", path)
	}
	if len(cfg.Channels) == 0 {
		return Config{}, fmt.Errorf("%s: no channels configured", path)
	}
	for i, channel := range cfg.Channels {
		if channel.URL == "" {
			return Config{}, fmt.Errorf("%s: channel %d has no url", path, i)
		}
	}
	return cfg, nil
}

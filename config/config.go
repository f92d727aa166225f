// Package config loads analyzer configuration from verifier.conf files.
// Configuration files in parent directories are merged, nearest directory
// winning, on top of the built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

type config struct {
	cfg  Config
	meta toml.MetaData
}

func (cfg config) Merge(ocfg config) config {
	if ocfg.meta.IsDefined("analysis", "widening_delay") {
		cfg.cfg.Analysis.WideningDelay = ocfg.cfg.Analysis.WideningDelay
	}
	if ocfg.meta.IsDefined("analysis", "simplify") {
		cfg.cfg.Analysis.Simplify = ocfg.cfg.Analysis.Simplify
	}
	if ocfg.meta.IsDefined("logging", "verbosity") {
		cfg.cfg.Logging.Verbosity = ocfg.cfg.Logging.Verbosity
	}
	return cfg
}

type Config struct {
	Analysis AnalysisConfig `toml:"analysis"`
	Logging  LoggingConfig  `toml:"logging"`
}

type AnalysisConfig struct {
	// WideningDelay is the number of iterations of a cycle that are joined
	// before widening starts.
	WideningDelay uint `toml:"widening_delay"`
	// Simplify controls structural CFG simplification before analysis.
	Simplify bool `toml:"simplify"`
}

type LoggingConfig struct {
	// Verbosity is a logrus level name: panic, fatal, error, warning, info,
	// debug or trace.
	Verbosity string `toml:"verbosity"`
}

var defaultConfig = Config{
	Analysis: AnalysisConfig{
		WideningDelay: 1,
		Simplify:      true,
	},
	Logging: LoggingConfig{
		Verbosity: "warning",
	},
}

// Default returns the built-in configuration.
func Default() Config { return defaultConfig }

const configName = "verifier.conf"

func parseConfigs(dir string) ([]config, error) {
	var out []config

	for dir != "" {
		f, err := os.Open(filepath.Join(dir, configName))
		if os.IsNotExist(err) {
			ndir := filepath.Dir(dir)
			if ndir == dir {
				break
			}
			dir = ndir
			continue
		}
		if err != nil {
			return nil, err
		}
		var cfg Config
		meta, err := toml.NewDecoder(f).Decode(&cfg)
		f.Close()
		if err != nil {
			return nil, err
		}
		if un := meta.Undecoded(); len(un) > 0 {
			return nil, fmt.Errorf("config: unknown key %q", un[0].String())
		}
		out = append(out, config{cfg, meta})
		ndir := filepath.Dir(dir)
		if ndir == dir {
			break
		}
		dir = ndir
	}
	out = append(out, config{
		cfg:  defaultConfig,
		meta: toml.MetaData{}, // meta of the base config should never be accessed
	})
	for i := 0; i < len(out)/2; i++ {
		out[i], out[len(out)-1-i] = out[len(out)-1-i], out[i]
	}
	return out, nil
}

// Load reads the configuration that applies to dir.
func Load(dir string) (Config, error) {
	confs, err := parseConfigs(dir)
	if err != nil {
		return Config{}, err
	}
	conf := confs[0]
	for _, oconf := range confs[1:] {
		conf = conf.Merge(oconf)
	}
	if _, err := log.ParseLevel(conf.cfg.Logging.Verbosity); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return conf.cfg, nil
}

// LogLevel translates the configured verbosity into a logrus level.
func (c Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(c.Logging.Verbosity)
	if err != nil {
		return log.WarnLevel
	}
	return lvl
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config captures CLI options sourced from config files or flags.
type Config struct {
	Dir         string   `yaml:"dir"`
	InputFormat string   `yaml:"input_format"`
	IqtreeOpts  string   `yaml:"iqtree_opts"`
	Only        []string `yaml:"only"`
	Skip        []string `yaml:"skip"`

	Jobs         int `yaml:"jobs"`
	MinSuccesses int `yaml:"min_successes"`
	KillGraceSec int `yaml:"kill_grace"`

	OutDir  string `yaml:"out_dir"`
	LogFile string `yaml:"log_file"`

	DryRun  bool   `yaml:"dry_run"`
	Verbose bool   `yaml:"verbose"`
	Format  string `yaml:"format"`
}

const (
	// FormatPretty renders human readable output.
	FormatPretty = "pretty"
	// FormatJSON renders machine readable output.
	FormatJSON = "json"

	configName = ".phylopipe.yml"
)

// Default returns the baseline configuration used when no flags or config
// file specify values.
func Default() Config {
	return Config{
		Dir:          ".",
		InputFormat:  "auto",
		MinSuccesses: 1,
		KillGraceSec: 10,
		OutDir:       ".",
		LogFile:      "phylopipe.log",
		Format:       FormatPretty,
	}
}

// Load reads .phylopipe.yml from root when present. Missing files are ignored.
func Load(root string) (Config, error) {
	cfg := Default()
	path := filepath.Join(root, configName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}

	return merge(cfg, fileCfg), nil
}

func merge(base, override Config) Config {
	out := base

	if override.Dir != "" {
		out.Dir = override.Dir
	}
	if override.InputFormat != "" {
		out.InputFormat = override.InputFormat
	}
	if override.IqtreeOpts != "" {
		out.IqtreeOpts = override.IqtreeOpts
	}
	if len(override.Only) > 0 {
		out.Only = append([]string{}, override.Only...)
	}
	if len(override.Skip) > 0 {
		out.Skip = append([]string{}, override.Skip...)
	}
	if override.Jobs > 0 {
		out.Jobs = override.Jobs
	}
	if override.MinSuccesses > 0 {
		out.MinSuccesses = override.MinSuccesses
	}
	if override.KillGraceSec > 0 {
		out.KillGraceSec = override.KillGraceSec
	}
	if override.OutDir != "" {
		out.OutDir = override.OutDir
	}
	if override.LogFile != "" {
		out.LogFile = override.LogFile
	}
	if override.Format != "" {
		out.Format = override.Format
	}
	if override.DryRun {
		out.DryRun = true
	}
	if override.Verbose {
		out.Verbose = true
	}

	return out
}

// ApplyFlags mutates cfg by applying values from CLI flags when they are
// explicitly set.
func ApplyFlags(cfg *Config, flags FlagValues) {
	if flags.Dir.Set {
		cfg.Dir = flags.Dir.Value
	}
	if flags.InputFormat.Set {
		cfg.InputFormat = flags.InputFormat.Value
	}
	if flags.IqtreeOpts.Set {
		cfg.IqtreeOpts = flags.IqtreeOpts.Value
	}
	if len(flags.Only.Values) > 0 {
		cfg.Only = append([]string{}, flags.Only.Values...)
	}
	if len(flags.Skip.Values) > 0 {
		cfg.Skip = append([]string{}, flags.Skip.Values...)
	}
	if flags.Jobs.Set {
		cfg.Jobs = flags.Jobs.Value
	}
	if flags.MinSuccesses.Set {
		cfg.MinSuccesses = flags.MinSuccesses.Value
	}
	if flags.OutDir.Set {
		cfg.OutDir = flags.OutDir.Value
	}
	if flags.LogFile.Set {
		cfg.LogFile = flags.LogFile.Value
	}
	if flags.Format.Set {
		cfg.Format = flags.Format.Value
	}
	if flags.DryRun.Set {
		cfg.DryRun = flags.DryRun.Value
	}
	if flags.Verbose.Set {
		cfg.Verbose = flags.Verbose.Value
	}
}

// FlagValues captures CLI flag state with knowledge of whether each flag was
// set explicitly.
type FlagValues struct {
	Dir          StringFlag
	InputFormat  StringFlag
	IqtreeOpts   StringFlag
	Only         SliceFlag
	Skip         SliceFlag
	Jobs         IntFlag
	MinSuccesses IntFlag
	OutDir       StringFlag
	LogFile      StringFlag
	Format       StringFlag
	DryRun       BoolFlag
	Verbose      BoolFlag
}

// StringFlag represents a string flag and whether it was set.
type StringFlag struct {
	Value string
	Set   bool
}

// SliceFlag represents a slice flag and whether it captured values via CLI.
type SliceFlag struct {
	Values []string
}

// BoolFlag represents a bool flag and whether it was set.
type BoolFlag struct {
	Value bool
	Set   bool
}

// IntFlag represents an int flag and whether it was set.
type IntFlag struct {
	Value int
	Set   bool
}

// Package config loads depprune settings from an optional YAML file, the
// DEPPRUNE_* environment and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	KeyWorkDir         = "workdir"
	KeyDays            = "days"
	KeyRoots           = "roots"
	KeyExclude         = "exclude"
	KeyTargets         = "targets"
	KeyLockFiles       = "lockfiles"
	KeyReportRetention = "report_retention"
	KeyLogRetention    = "log_retention"
	KeyFreshnessDays   = "freshness_days"
	KeyWorkers         = "workers"
)

// Defaults.
const (
	DefaultDays            = 30
	DefaultReportRetention = 5
	DefaultLogRetention    = 10
	DefaultFreshnessDays   = 7
	DefaultWorkers         = 4
)

// EnvPrefix is prepended to upper-cased keys when reading the environment,
// e.g. DEPPRUNE_DAYS.
const EnvPrefix = "DEPPRUNE"

// DefaultRoots are searched when neither flags nor config name any root.
// Each is relative to the user's home directory.
var DefaultRoots = []string{
	"Projects",
	"projects",
	"Documents",
	"Desktop",
	"dev",
	"src",
	"code",
	filepath.Join("source", "repos"),
}

// Config is the resolved configuration.
type Config struct {
	WorkDir         string
	Days            int
	Roots           []string
	Exclude         []string
	Targets         []string
	LockFiles       []string
	ReportRetention int
	LogRetention    int
	FreshnessDays   int
	Workers         int

	// File is the config file that was read, empty if none.
	File string
}

// Paths are the locations under the working directory.
type Paths struct {
	Root      string
	Reports   string
	Logs      string
	HistoryDB string
}

// Dir returns the depprune config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/depprune if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "depprune"), nil
}

// NewViper returns a viper instance with defaults and environment binding
// installed. Flags are bound onto it by the caller.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyWorkDir, "")
	v.SetDefault(KeyDays, DefaultDays)
	v.SetDefault(KeyRoots, []string{})
	v.SetDefault(KeyExclude, []string{})
	v.SetDefault(KeyTargets, []string{"node_modules"})
	v.SetDefault(KeyLockFiles, []string{})
	v.SetDefault(KeyReportRetention, DefaultReportRetention)
	v.SetDefault(KeyLogRetention, DefaultLogRetention)
	v.SetDefault(KeyFreshnessDays, DefaultFreshnessDays)
	v.SetDefault(KeyWorkers, DefaultWorkers)
	return v
}

// Load reads file into v and returns the merged configuration. An empty
// file means the default location; a missing default file is not an error,
// a missing explicit file is.
func Load(v *viper.Viper, file string) (*Config, error) {
	explicit := file != ""
	if !explicit {
		dir, err := Dir()
		if err == nil {
			file = filepath.Join(dir, "config.yaml")
		}
	}

	cfg := &Config{}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			switch {
			case !explicit && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)):
			default:
				return nil, fmt.Errorf("failed to read config %s: %w", file, err)
			}
		} else {
			cfg.File = file
		}
	}

	cfg.WorkDir = v.GetString(KeyWorkDir)
	cfg.Days = v.GetInt(KeyDays)
	cfg.Roots = v.GetStringSlice(KeyRoots)
	cfg.Exclude = v.GetStringSlice(KeyExclude)
	cfg.Targets = v.GetStringSlice(KeyTargets)
	cfg.LockFiles = v.GetStringSlice(KeyLockFiles)
	cfg.ReportRetention = v.GetInt(KeyReportRetention)
	cfg.LogRetention = v.GetInt(KeyLogRetention)
	cfg.FreshnessDays = v.GetInt(KeyFreshnessDays)
	cfg.Workers = v.GetInt(KeyWorkers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	if c.Days < 0 {
		return fmt.Errorf("invalid %s: %d (must not be negative)", KeyDays, c.Days)
	}
	if c.ReportRetention < 1 {
		return fmt.Errorf("invalid %s: %d (must be at least 1)", KeyReportRetention, c.ReportRetention)
	}
	if c.LogRetention < 1 {
		return fmt.Errorf("invalid %s: %d (must be at least 1)", KeyLogRetention, c.LogRetention)
	}
	if c.FreshnessDays < 1 {
		return fmt.Errorf("invalid %s: %d (must be at least 1)", KeyFreshnessDays, c.FreshnessDays)
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid %s: %d (must be at least 1)", KeyWorkers, c.Workers)
	}
	for _, t := range c.Targets {
		if t == "" || strings.ContainsAny(t, `/\`) {
			return fmt.Errorf("invalid target name %q (must be a single directory name)", t)
		}
	}
	return nil
}

// Paths derives the working-directory layout. An empty WorkDir means
// ~/.depprune.
func (c *Config) Paths() (Paths, error) {
	root := c.WorkDir
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("failed to determine home directory: %w", err)
		}
		root = filepath.Join(home, ".depprune")
	}
	root, err := ExpandHome(root)
	if err != nil {
		return Paths{}, err
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return NewPaths(root), nil
}

// NewPaths lays out the working directory rooted at root.
func NewPaths(root string) Paths {
	return Paths{
		Root:      root,
		Reports:   filepath.Join(root, "reports"),
		Logs:      filepath.Join(root, "logs"),
		HistoryDB: filepath.Join(root, "history.db"),
	}
}

// Ensure creates the working directories.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.Root, p.Reports, p.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// SearchRoots returns the configured roots, or DefaultRoots under the home
// directory when none are configured. A leading ~ is expanded.
func (c *Config) SearchRoots() ([]string, error) {
	if len(c.Roots) > 0 {
		roots := make([]string, 0, len(c.Roots))
		for _, r := range c.Roots {
			expanded, err := ExpandHome(r)
			if err != nil {
				return nil, err
			}
			roots = append(roots, expanded)
		}
		return roots, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to determine home directory: %w", err)
	}
	roots := make([]string, len(DefaultRoots))
	for i, r := range DefaultRoots {
		roots[i] = filepath.Join(home, r)
	}
	return roots, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", p, err)
	}
	return filepath.Join(home, p[1:]), nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the environment variable prefix.
const DefaultEnvPrefix = "CLEANUP_"

// ConfigFileNames are looked up in the project directory, in order.
var ConfigFileNames = []string{
	".cleanup-orchestrator.yaml",
	".cleanup-orchestrator.yml",
	".cleanup-orchestrator.toml",
}

// Flag keys understood by Load.
const (
	KeyConfigFile = "config_file"
	KeyProjectDir = "project_dir"
)

// ErrReadBytesNotSupported is returned when ReadBytes is called on a map provider.
var ErrReadBytesNotSupported = errors.New("config: map provider only supports Read")

// mapProvider is a koanf provider over a flat map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, ErrReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}

// Loader loads Options from multiple sources.
// Priority: flags > env > file > defaults.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load merges every source and returns validated options. flags holds only
// the flags the user set explicitly, keyed like the koanf tags of Options;
// KeyConfigFile selects a config file instead of discovery.
func (l *Loader) Load(flags map[string]any) (Options, error) {
	if err := l.k.Load(mapProvider(defaultsMap()), nil); err != nil {
		return Options{}, fmt.Errorf("load defaults: %w", err)
	}

	envMap, err := l.envValues()
	if err != nil {
		return Options{}, err
	}

	path, err := l.locateFile(flags, envMap)
	if err != nil {
		return Options{}, err
	}
	if path != "" {
		if err := l.LoadFile(path); err != nil {
			return Options{}, err
		}
	}

	if err := l.LoadEnv(); err != nil {
		return Options{}, err
	}

	if len(flags) > 0 {
		fl := make(map[string]any, len(flags))
		for k, v := range flags {
			if k != KeyConfigFile {
				fl[k] = v
			}
		}
		if err := l.k.Load(mapProvider(fl), nil); err != nil {
			return Options{}, fmt.Errorf("load flags: %w", err)
		}
	}

	var opts Options
	if err := l.k.Unmarshal("", &opts); err != nil {
		return Options{}, fmt.Errorf("unmarshal config: %w", err)
	}
	opts.ConfigFile = path
	if abs, err := filepath.Abs(opts.ProjectDir); err == nil {
		opts.ProjectDir = abs
	}

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// LoadFile loads a YAML or TOML config file, chosen by extension.
func (l *Loader) LoadFile(path string) error {
	var parser koanf.Parser = yaml.Parser()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		parser = TOMLParser()
	}
	if err := l.k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv loads CLEANUP_* variables: CLEANUP_SKIP_STEPS=a,b -> skip_steps.
func (l *Loader) LoadEnv() error {
	provider := env.ProviderWithValue(l.envPrefix, ".", l.envValue)
	if err := l.k.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

func (l *Loader) envValue(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.TrimPrefix(key, l.envPrefix))
	switch key {
	case "skip_steps", "excludes":
		return key, ParseStepList(value)
	}
	return key, value
}

// envValues reads the env layer on its own so the config file location can
// honor CLEANUP_CONFIG_FILE and CLEANUP_PROJECT_DIR.
func (l *Loader) envValues() (map[string]any, error) {
	k := koanf.New(".")
	if err := k.Load(env.ProviderWithValue(l.envPrefix, ".", l.envValue), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}
	return k.All(), nil
}

func (l *Loader) locateFile(flags, envMap map[string]any) (string, error) {
	if p := stringValue(flags, KeyConfigFile, envMap); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%w: config file: %w", ErrInvalidOptions, err)
		}
		return p, nil
	}

	dir := stringValue(flags, KeyProjectDir, envMap)
	if dir == "" {
		dir = "."
	}
	for _, name := range ConfigFileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

func stringValue(flags map[string]any, key string, envMap map[string]any) string {
	if v, ok := flags[key].(string); ok && v != "" {
		return v
	}
	if v, ok := envMap[key].(string); ok {
		return v
	}
	return ""
}

// Get returns a raw value by key.
func (l *Loader) Get(key string) any {
	return l.k.Get(key)
}

// All returns every loaded key.
func (l *Loader) All() map[string]any {
	return l.k.All()
}

func defaultsMap() map[string]any {
	d := Defaults()
	return map[string]any{
		"dry_run":     d.DryRun,
		"verbose":     d.Verbose,
		"log_file":    d.LogFile,
		"use_backup":  d.UseBackup,
		"use_git":     d.UseGit,
		"project_dir": d.ProjectDir,
		"backup_dir":  d.BackupDir,
	}
}

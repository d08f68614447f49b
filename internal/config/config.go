package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/reconctl/internal/tools"
	"github.com/hashicorp/go-multierror"
)

const (
	DefaultPath          = "reconctl.toml"
	DefaultMaxConcurrent = 4

	RunnerLocal = "local"
	RunnerSSH   = "ssh"
)

// Config is the resolved process-wide configuration.
type Config struct {
	Binary         string
	Shell          string
	CatalogTimeout time.Duration
	RawTimeout     time.Duration
	RawEnabled     bool
	MaxConcurrent  int
	Runner         string
	HTTPAddr       string
	HTTPToken      string
	CorsOrigins    []string
	SSH            SSHConfig
}

type SSHConfig struct {
	Host                        string
	Port                        string
	User                        string
	KeyPath                     string
	KnownHostsPath              string
	InsecureSkipHostKeyChecking bool
	DialTimeout                 time.Duration
}

type fileConfig struct {
	Binary         string   `toml:"binary"`
	Shell          string   `toml:"shell"`
	CatalogTimeout string   `toml:"catalog_timeout"`
	RawTimeout     string   `toml:"raw_timeout"`
	RawEnabled     bool     `toml:"raw_enabled"`
	MaxConcurrent  int      `toml:"max_concurrent"`
	Runner         string   `toml:"runner"`
	HTTPAddr       string   `toml:"http_addr"`
	HTTPToken      string   `toml:"http_token"`
	CorsOrigins    []string `toml:"cors_origins"`
	SSH            fileSSH  `toml:"ssh"`
}

type fileSSH struct {
	Host                        string `toml:"host"`
	Port                        string `toml:"port"`
	User                        string `toml:"user"`
	KeyPath                     string `toml:"key_path"`
	KnownHostsPath              string `toml:"known_hosts_path"`
	InsecureSkipHostKeyChecking bool   `toml:"insecure_skip_host_key_checking"`
	DialTimeout                 string `toml:"dial_timeout"`
}

func Default() Config {
	return Config{
		Binary:         tools.DefaultBinary,
		Shell:          tools.DefaultShell,
		CatalogTimeout: tools.DefaultTimeout,
		RawTimeout:     tools.DefaultRawTimeout,
		RawEnabled:     true,
		MaxConcurrent:  DefaultMaxConcurrent,
		Runner:         RunnerLocal,
		CorsOrigins:    []string{},
		SSH: SSHConfig{
			Port:        "22",
			DialTimeout: 10 * time.Second,
		},
	}
}

// Load reads path over the defaults; only keys present in the file override.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("binary") {
		cfg.Binary = strings.TrimSpace(raw.Binary)
	}
	if meta.IsDefined("shell") {
		cfg.Shell = strings.TrimSpace(raw.Shell)
	}
	if meta.IsDefined("catalog_timeout") {
		if cfg.CatalogTimeout, err = parseDuration("catalog_timeout", raw.CatalogTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("raw_timeout") {
		if cfg.RawTimeout, err = parseDuration("raw_timeout", raw.RawTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("raw_enabled") {
		cfg.RawEnabled = raw.RawEnabled
	}
	if meta.IsDefined("max_concurrent") {
		cfg.MaxConcurrent = raw.MaxConcurrent
	}
	if meta.IsDefined("runner") {
		cfg.Runner = strings.ToLower(strings.TrimSpace(raw.Runner))
	}
	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("http_token") {
		cfg.HTTPToken = strings.TrimSpace(raw.HTTPToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeList(raw.CorsOrigins)
	}

	if meta.IsDefined("ssh", "host") {
		cfg.SSH.Host = strings.TrimSpace(raw.SSH.Host)
	}
	if meta.IsDefined("ssh", "port") {
		cfg.SSH.Port = strings.TrimSpace(raw.SSH.Port)
	}
	if meta.IsDefined("ssh", "user") {
		cfg.SSH.User = strings.TrimSpace(raw.SSH.User)
	}
	if meta.IsDefined("ssh", "key_path") {
		cfg.SSH.KeyPath = strings.TrimSpace(raw.SSH.KeyPath)
	}
	if meta.IsDefined("ssh", "known_hosts_path") {
		cfg.SSH.KnownHostsPath = strings.TrimSpace(raw.SSH.KnownHostsPath)
	}
	if meta.IsDefined("ssh", "insecure_skip_host_key_checking") {
		cfg.SSH.InsecureSkipHostKeyChecking = raw.SSH.InsecureSkipHostKeyChecking
	}
	if meta.IsDefined("ssh", "dial_timeout") {
		if cfg.SSH.DialTimeout, err = parseDuration("ssh.dial_timeout", raw.SSH.DialTimeout); err != nil {
			return Config{}, err
		}
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional is Load, falling back to the defaults when path does not
// exist.
func LoadOptional(path string) (Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), false, nil
	}
	return Config{}, false, err
}

// Validate reports every problem in cfg at once.
func Validate(cfg Config) error {
	var result *multierror.Error
	if strings.TrimSpace(cfg.Binary) == "" {
		result = multierror.Append(result, fmt.Errorf("binary is required"))
	}
	if strings.TrimSpace(cfg.Shell) == "" {
		result = multierror.Append(result, fmt.Errorf("shell is required"))
	}
	if cfg.CatalogTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("catalog_timeout must be positive"))
	}
	if cfg.RawTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("raw_timeout must be positive"))
	}
	if cfg.MaxConcurrent < 1 {
		result = multierror.Append(result, fmt.Errorf("max_concurrent must be at least 1"))
	}
	switch cfg.Runner {
	case RunnerLocal:
	case RunnerSSH:
		if cfg.SSH.Host == "" {
			result = multierror.Append(result, fmt.Errorf("ssh.host is required when runner is ssh"))
		}
		if cfg.SSH.User == "" {
			result = multierror.Append(result, fmt.Errorf("ssh.user is required when runner is ssh"))
		}
		if cfg.SSH.KeyPath == "" {
			result = multierror.Append(result, fmt.Errorf("ssh.key_path is required when runner is ssh"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("unknown runner %q (want %s or %s)", cfg.Runner, RunnerLocal, RunnerSSH))
	}
	return result.ErrorOrNil()
}

// CommandRunner builds the process runner selected by cfg.
func (c Config) CommandRunner() tools.CommandRunner {
	if c.Runner == RunnerSSH {
		return tools.SSHRunner{
			Host:                        c.SSH.Host,
			Port:                        c.SSH.Port,
			User:                        c.SSH.User,
			KeyPath:                     c.SSH.KeyPath,
			KnownHostsPath:              c.SSH.KnownHostsPath,
			InsecureSkipHostKeyChecking: c.SSH.InsecureSkipHostKeyChecking,
			DialTimeout:                 c.SSH.DialTimeout,
		}
	}
	return tools.ExecRunner{Shell: c.Shell}
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

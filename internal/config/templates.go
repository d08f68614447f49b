package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Render encodes cfg in the on-disk TOML layout.
func Render(cfg Config) ([]byte, error) {
	out, err := toml.Marshal(toFile(cfg))
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return out, nil
}

// WriteTemplate writes the default configuration to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	data, err := Render(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func toFile(cfg Config) fileConfig {
	origins := cfg.CorsOrigins
	if origins == nil {
		origins = []string{}
	}
	return fileConfig{
		Binary:         cfg.Binary,
		Shell:          cfg.Shell,
		CatalogTimeout: cfg.CatalogTimeout.String(),
		RawTimeout:     cfg.RawTimeout.String(),
		RawEnabled:     cfg.RawEnabled,
		MaxConcurrent:  cfg.MaxConcurrent,
		Runner:         cfg.Runner,
		HTTPAddr:       cfg.HTTPAddr,
		HTTPToken:      cfg.HTTPToken,
		CorsOrigins:    origins,
		SSH: fileSSH{
			Host:                        cfg.SSH.Host,
			Port:                        cfg.SSH.Port,
			User:                        cfg.SSH.User,
			KeyPath:                     cfg.SSH.KeyPath,
			KnownHostsPath:              cfg.SSH.KnownHostsPath,
			InsecureSkipHostKeyChecking: cfg.SSH.InsecureSkipHostKeyChecking,
			DialTimeout:                 cfg.SSH.DialTimeout.String(),
		},
	}
}

// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Model struct {
		Path            string `yaml:"path"`
		CacheSize       int    `yaml:"cache_size"`
		Watch           bool   `yaml:"watch"`
		ExitOnLoadError bool   `yaml:"exit_on_load_error"`
	} `yaml:"model"`
	Frontend struct {
		Title    string `yaml:"title"`
		Language string `yaml:"language"`
	} `yaml:"frontend"`
}

// Default returns the configuration used for any key the file leaves out.
func Default() *Config {
	var c Config
	c.Http.Port = 8080
	c.Http.Timeout = 30 * time.Second
	c.Http.AllowedOrigins = []string{"*"}
	c.Log.Level = "info"
	c.Log.MaxSizeMB = 100
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 28
	c.Model.Path = "modelo-clas-tree-knn-nn.json"
	c.Model.CacheSize = 128
	c.Frontend.Title = "SafeDrive Risk Analyzer"
	c.Frontend.Language = "es"
	return &c
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

// Resolve finds name in the working directory or its parent, so the binary
// can be started from the repository root or from cmd/. Relative model and
// log paths are rebased onto the directory the config was found in.
func Resolve(name string) (*Config, string, error) {
	path := name
	if _, err := os.Stat(path); os.IsNotExist(err) && !filepath.IsAbs(name) {
		path = filepath.Join("..", name)
	}
	config, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	dir := filepath.Dir(path)
	if !filepath.IsAbs(config.Model.Path) {
		config.Model.Path = filepath.Join(dir, config.Model.Path)
	}
	if config.Log.File != "" && !filepath.IsAbs(config.Log.File) {
		config.Log.File = filepath.Join(dir, config.Log.File)
	}
	return config, path, nil
}

func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.Http.Port)
	}
	if c.Http.Timeout <= 0 {
		return errors.New("http.timeout must be positive")
	}
	if c.Model.Path == "" {
		return errors.New("model.path is required")
	}
	if c.Model.CacheSize < 0 {
		return errors.New("model.cache_size must not be negative")
	}
	return nil
}

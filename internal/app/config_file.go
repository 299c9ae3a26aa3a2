package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
// Nested sections improve readability and map naturally to flags/env.
type FileConfig struct {
	Catalog string `yaml:"catalog" json:"catalog"`
	Output  string `yaml:"output" json:"output"`
	Date    string `yaml:"date" json:"date"`

	Session struct {
		StorageState string        `yaml:"storageState" json:"storageState"`
		Headless     *bool         `yaml:"headless" json:"headless"`
		SlowMo       time.Duration `yaml:"slowMo" json:"slowMo"`
	} `yaml:"session" json:"session"`

	Proxy struct {
		Server   string `yaml:"server" json:"server"`
		Username string `yaml:"username" json:"username"`
		Password string `yaml:"password" json:"password"`
	} `yaml:"proxy" json:"proxy"`

	Extract struct {
		MinTextLength int           `yaml:"minTextLength" json:"minTextLength"`
		RateWait      time.Duration `yaml:"rateWait" json:"rateWait"`
		MaxAttempts   int           `yaml:"maxAttempts" json:"maxAttempts"`
		AttachPDF     bool          `yaml:"attachPDF" json:"attachPDF"`
	} `yaml:"extract" json:"extract"`

	Interactive struct {
		Enable  bool   `yaml:"enable" json:"enable"`
		Host    string `yaml:"host" json:"host"`
		Port    int    `yaml:"port" json:"port"`
		Sites   string `yaml:"sites" json:"sites"`
		SaveDir string `yaml:"saveDir" json:"saveDir"`
		LogDir  string `yaml:"logDir" json:"logDir"`
	} `yaml:"interactive" json:"interactive"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are currently unset/zero in cfg. Flags should already have been parsed; this
// function lets file config supply defaults while preserving explicit flags.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	const (
		catalogDefault  = "catalog.json"
		outputDefault   = "fulltext"
		saveDirDefault  = "downloads"
		logDirDefault   = "logs/interactive"
		hostDefault     = "127.0.0.1"
		portDefault     = 9222
		minTextDefault  = 400
		attemptsDefault = 2
	)

	if (cfg.CatalogPath == "" || cfg.CatalogPath == catalogDefault) && fc.Catalog != "" {
		cfg.CatalogPath = fc.Catalog
	}
	if (cfg.OutputDir == "" || cfg.OutputDir == outputDefault) && fc.Output != "" {
		cfg.OutputDir = fc.Output
	}
	if cfg.Date == "" && fc.Date != "" {
		cfg.Date = fc.Date
	}

	if cfg.StorageStatePath == "" && fc.Session.StorageState != "" {
		cfg.StorageStatePath = fc.Session.StorageState
	}
	if fc.Session.Headless != nil {
		cfg.Headless = *fc.Session.Headless
	}
	if cfg.SlowMo == 0 && fc.Session.SlowMo > 0 {
		cfg.SlowMo = fc.Session.SlowMo
	}

	if cfg.ProxyServer == "" && fc.Proxy.Server != "" {
		cfg.ProxyServer = fc.Proxy.Server
	}
	if cfg.ProxyUsername == "" && fc.Proxy.Username != "" {
		cfg.ProxyUsername = fc.Proxy.Username
	}
	if cfg.ProxyPassword == "" && fc.Proxy.Password != "" {
		cfg.ProxyPassword = fc.Proxy.Password
	}

	if (cfg.MinTextLength == 0 || cfg.MinTextLength == minTextDefault) && fc.Extract.MinTextLength > 0 {
		cfg.MinTextLength = fc.Extract.MinTextLength
	}
	if cfg.RateWait == 0 && fc.Extract.RateWait > 0 {
		cfg.RateWait = fc.Extract.RateWait
	}
	if (cfg.MaxAttempts == 0 || cfg.MaxAttempts == attemptsDefault) && fc.Extract.MaxAttempts > 0 {
		cfg.MaxAttempts = fc.Extract.MaxAttempts
	}
	if !cfg.AttachPDF && fc.Extract.AttachPDF {
		cfg.AttachPDF = true
	}

	if !cfg.InteractiveEnable && fc.Interactive.Enable {
		cfg.InteractiveEnable = true
	}
	if (cfg.InteractiveHost == "" || cfg.InteractiveHost == hostDefault) && fc.Interactive.Host != "" {
		cfg.InteractiveHost = fc.Interactive.Host
	}
	if (cfg.InteractivePort == 0 || cfg.InteractivePort == portDefault) && fc.Interactive.Port > 0 {
		cfg.InteractivePort = fc.Interactive.Port
	}
	if cfg.SiteConfigPath == "" && fc.Interactive.Sites != "" {
		cfg.SiteConfigPath = fc.Interactive.Sites
	}
	if (cfg.InteractiveSaveDir == "" || cfg.InteractiveSaveDir == saveDirDefault) && fc.Interactive.SaveDir != "" {
		cfg.InteractiveSaveDir = fc.Interactive.SaveDir
	}
	if (cfg.InteractiveLogDir == "" || cfg.InteractiveLogDir == logDirDefault) && fc.Interactive.LogDir != "" {
		cfg.InteractiveLogDir = fc.Interactive.LogDir
	}

	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.CatalogPath) == "" {
		return errors.New("config: catalog path is required")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return errors.New("config: output directory is required")
	}
	if strings.TrimSpace(cfg.StorageStatePath) == "" {
		return errors.New("config: session.storageState is required")
	}
	if cfg.MinTextLength < 0 || cfg.MaxAttempts < 0 || cfg.InteractivePort < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if cfg.InteractiveEnable && strings.TrimSpace(cfg.SiteConfigPath) == "" {
		return errors.New("config: interactive.sites is required when the interactive tier is enabled")
	}
	return nil
}

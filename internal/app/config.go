package app

import "time"

// Config holds runtime configuration for the application.
type Config struct {
	CatalogPath string
	OutputDir   string
	Date        string

	// Browser session
	StorageStatePath string
	Headless         bool
	SlowMo           time.Duration
	ProxyServer      string
	ProxyUsername    string
	ProxyPassword    string

	// Extraction
	MinTextLength int
	RateWait      time.Duration
	MaxAttempts   int
	AttachPDF     bool

	// Interactive fallback
	InteractiveEnable  bool
	InteractiveHost    string
	InteractivePort    int
	SiteConfigPath     string
	InteractiveSaveDir string
	InteractiveLogDir  string

	// Behavior
	Verbose bool
}

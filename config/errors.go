package config

import "errors"

// Configuration validation errors.
var (
	ErrNoSitesFile          = errors.New("sites file path is required")
	ErrNoSites              = errors.New("sites file lists no URLs")
	ErrInvalidFirstN        = errors.New("first-n must be positive")
	ErrInvalidSiteWorkers   = errors.New("site workers must be between 1 and 8")
	ErrInvalidTimeout       = errors.New("timeouts must be positive")
	ErrInvalidAttempts      = errors.New("max attempts must be at least 1")
	ErrInvalidRate          = errors.New("request rate must not be negative")
	ErrInvalidMinTextLength = errors.New("min text length must not be negative")
	ErrNoOutputDir          = errors.New("output directory is required")
	ErrInvalidSelector      = errors.New("invalid selector hint")
)

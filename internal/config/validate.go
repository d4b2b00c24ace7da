package config

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/shinji-kodama/zhpack/internal/archive"
	"github.com/shinji-kodama/zhpack/internal/beautify"
)

// ValidationError represents a specific validation failure in the project
// configuration.
type ValidationError struct {
	// Field is the configuration key that failed validation (e.g., "rules[2].pattern").
	Field string

	// Message describes what's wrong with the value.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Validate checks cfg and returns every problem found (empty list = valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.TranslationDir == "" {
		add("translationDir", "must not be empty")
	}
	if cfg.BuildDir == "" {
		add("buildDir", "must not be empty")
	}
	for _, p := range []struct{ field, prefix string }{
		{"archivePrefix", cfg.ArchivePrefix},
		{"beautifyPrefix", cfg.BeautifyPrefix},
	} {
		field, prefix := p.field, p.prefix
		switch {
		case prefix == "":
			add(field, "must not be empty")
		case strings.ContainsAny(prefix, `/\`):
			add(field, "%q must not contain path separators", prefix)
		}
	}

	if err := archive.ValidateCharset(cfg.Charset); err != nil {
		add("charset", "%v", err)
	}
	if !doublestar.ValidatePattern(cfg.ItemPattern) {
		add("itemPattern", "%q is not a valid pattern", cfg.ItemPattern)
	}

	if !cfg.OnMissing.IsValid() {
		add("onMissing", "%q is not one of skip, fail", cfg.OnMissing)
	}
	if !cfg.OnCleanupError.IsValid() {
		add("onCleanupError", "%q is not one of skip, fail", cfg.OnCleanupError)
	}
	if !cfg.Symlinks.IsValid() {
		add("symlinks", "%q is not one of skip, follow", cfg.Symlinks)
	}

	for i, spec := range cfg.Rules {
		if _, err := beautify.NewRule(spec); err != nil {
			add(fmt.Sprintf("rules[%d]", i), "%v", err)
		}
	}

	return errs
}

// Package config loads the optional zhpack project file and resolves the
// project root.
//
// A project needs no configuration file at all: the defaults reproduce the
// layout the tool has always used (translations in 汉化, archives in target
// named ZH_<millis>.zip and ZH_BEAUTIFY_<millis>.zip). When a file is present
// at the project root its keys override the defaults one by one.
//
// The file format is chosen by extension:
//
//	zhpack.yaml, zhpack.yml   YAML
//	zhpack.toml               TOML
//	zhpack.jsonc, zhpack.json JSON, comments and trailing commas allowed
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/zhpack/internal/archive"
	"github.com/shinji-kodama/zhpack/internal/beautify"
	"github.com/shinji-kodama/zhpack/internal/model"
)

// Project defaults applied when the configuration leaves a field empty.
const (
	// DefaultTranslationDir is the translation directory below the project root.
	DefaultTranslationDir = "汉化"

	// DefaultBuildDir is the archive output directory.
	DefaultBuildDir = "target"

	// DefaultArchivePrefix names archives written by pack.
	DefaultArchivePrefix = "ZH"

	// DefaultBeautifyPrefix names archives written by beautify.
	DefaultBeautifyPrefix = "ZH_BEAUTIFY"
)

// FileNames lists the configuration file names searched at the project
// root, in priority order.
var FileNames = []string{
	"zhpack.yaml",
	"zhpack.yml",
	"zhpack.toml",
	"zhpack.jsonc",
	"zhpack.json",
}

// Config holds the project settings.
type Config struct {
	// TranslationDir is the directory packaged by zhpack, relative to the
	// project root unless absolute.
	TranslationDir string `json:"translationDir" yaml:"translationDir" toml:"translationDir"`

	// BuildDir receives the archives, relative to the working directory
	// unless absolute.
	BuildDir string `json:"buildDir" yaml:"buildDir" toml:"buildDir"`

	// ArchivePrefix names plain archives: <ArchivePrefix>_<millis>.zip.
	ArchivePrefix string `json:"archivePrefix" yaml:"archivePrefix" toml:"archivePrefix"`

	// BeautifyPrefix names beautified archives.
	BeautifyPrefix string `json:"beautifyPrefix" yaml:"beautifyPrefix" toml:"beautifyPrefix"`

	// Charset is the entry-name encoding of written archives.
	Charset string `json:"charset" yaml:"charset" toml:"charset"`

	// ItemPattern selects the files rewritten by beautify.
	ItemPattern string `json:"itemPattern" yaml:"itemPattern" toml:"itemPattern"`

	// OnMissing decides whether a declared archive source that does not
	// exist is skipped ("skip") or fails the archive ("fail").
	OnMissing model.FailurePolicy `json:"onMissing" yaml:"onMissing" toml:"onMissing"`

	// OnCleanupError decides whether a working copy that cannot be removed
	// after beautify is only logged ("skip") or fails the run ("fail").
	OnCleanupError model.FailurePolicy `json:"onCleanupError" yaml:"onCleanupError" toml:"onCleanupError"`

	// Symlinks decides whether links inside the translation directory are
	// left out ("skip") or followed ("follow").
	Symlinks model.SymlinkPolicy `json:"symlinks" yaml:"symlinks" toml:"symlinks"`

	// KeepWorkCopy leaves the beautify working copy on disk.
	KeepWorkCopy bool `json:"keepWorkCopy" yaml:"keepWorkCopy" toml:"keepWorkCopy"`

	// Rules replaces the built-in rewrite rules when non-empty.
	Rules []model.RuleSpec `json:"rules,omitempty" yaml:"rules,omitempty" toml:"rules,omitempty"`
}

// Default returns the settings used when no configuration file exists.
func Default() *Config {
	return &Config{
		TranslationDir: DefaultTranslationDir,
		BuildDir:       DefaultBuildDir,
		ArchivePrefix:  DefaultArchivePrefix,
		BeautifyPrefix: DefaultBeautifyPrefix,
		Charset:        archive.DefaultCharset,
		ItemPattern:    beautify.DefaultItemPattern,
		OnMissing:      model.PolicySkip,
		OnCleanupError: model.PolicySkip,
		Symlinks:       model.SymlinkSkip,
	}
}

// Find returns the first configuration file present in dir, or "" if there
// is none.
func Find(dir string) string {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Load reads the configuration file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitInvalidConfig,
				fmt.Sprintf("configuration file not found: %s", path),
				err,
			)
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitInvalidConfig,
			fmt.Sprintf("failed to parse configuration file %s", path),
			err,
		)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext (".yaml", ".toml", ...)
// on top of the defaults.
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Default()

	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), cfg)
	default:
		return nil, fmt.Errorf("unsupported configuration format %q", ext)
	}
	if err != nil {
		return nil, err
	}

	cfg.normalize()
	return cfg, nil
}

// LoadProject loads the configuration for the project at root. An explicit
// path wins over the files searched at root; with neither, the defaults
// are returned. The second result is the file that was loaded, if any.
func LoadProject(root, explicit string) (*Config, string, error) {
	path := explicit
	if path == "" {
		path = Find(root)
	}
	if path == "" {
		return Default(), "", nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// normalize lower-cases policy values and fills keys left empty.
func (c *Config) normalize() {
	def := Default()

	c.OnMissing = model.FailurePolicy(strings.ToLower(string(c.OnMissing)))
	c.OnCleanupError = model.FailurePolicy(strings.ToLower(string(c.OnCleanupError)))
	c.Symlinks = model.SymlinkPolicy(strings.ToLower(string(c.Symlinks)))

	if c.OnMissing == "" {
		c.OnMissing = def.OnMissing
	}
	if c.OnCleanupError == "" {
		c.OnCleanupError = def.OnCleanupError
	}
	if c.Symlinks == "" {
		c.Symlinks = def.Symlinks
	}
	if c.Charset == "" {
		c.Charset = def.Charset
	}
	if c.ItemPattern == "" {
		c.ItemPattern = def.ItemPattern
	}
}

// RuleSet compiles the configured rules, or returns the built-in rules when
// none are configured.
func (c *Config) RuleSet() (*beautify.RuleSet, error) {
	if len(c.Rules) == 0 {
		return beautify.DefaultRules(), nil
	}
	return beautify.NewRuleSet(c.Rules)
}

// ArchiveOptions returns the archiver options implied by the settings.
func (c *Config) ArchiveOptions() archive.Options {
	return archive.Options{
		Charset:   c.Charset,
		OnMissing: c.OnMissing,
		Symlinks:  c.Symlinks,
	}
}

// BeautifyOptions returns the beautifier options implied by the settings.
func (c *Config) BeautifyOptions() beautify.Options {
	return beautify.Options{
		ItemPattern:    c.ItemPattern,
		Archive:        c.ArchiveOptions(),
		OnCleanupError: c.OnCleanupError,
		KeepWorkCopy:   c.KeepWorkCopy,
	}
}

// TranslationPath resolves TranslationDir against the project root.
func (c *Config) TranslationPath(root string) string {
	if filepath.IsAbs(c.TranslationDir) {
		return c.TranslationDir
	}
	return filepath.Join(root, c.TranslationDir)
}

// FindProjectRoot walks up from start to the first directory containing
// translationDir.
func FindProjectRoot(start, translationDir string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	for {
		info, err := os.Stat(filepath.Join(dir, translationDir))
		if err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", model.PreconditionFailed(
				"find project root", start,
				fmt.Errorf("no %s directory found in %s or any parent", translationDir, start),
			)
		}
		dir = parent
	}
}

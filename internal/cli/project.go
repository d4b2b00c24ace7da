package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/zhpack/internal/config"
	"github.com/shinji-kodama/zhpack/internal/model"
)

// project is the resolved project layout and settings of one invocation.
type project struct {
	// Root is the project root directory. Empty when none was found and
	// the command does not need one.
	Root string

	// Config holds the validated settings.
	Config *config.Config

	// ConfigFile is the file the settings were loaded from, if any.
	ConfigFile string
}

// loadProject resolves the project root and configuration from the global
// flags. When requireRoot is false a missing project root is tolerated and
// only the configuration is resolved.
func loadProject(requireRoot bool) (*project, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	// An explicit file decides the translation directory used for root
	// discovery; otherwise the default name is searched.
	var cfg *config.Config
	if configPath != "" {
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}

	translationDir := config.DefaultTranslationDir
	if cfg != nil {
		translationDir = cfg.TranslationDir
	}

	root := rootDir
	if root == "" {
		root, err = config.FindProjectRoot(cwd, translationDir)
		if err != nil {
			if requireRoot {
				return nil, err
			}
			root = ""
		}
	}

	p := &project{Root: root, Config: cfg, ConfigFile: configPath}
	if p.Config == nil {
		searchDir := root
		if searchDir == "" {
			searchDir = cwd
		}
		if p.Config, p.ConfigFile, err = config.LoadProject(searchDir, ""); err != nil {
			return nil, err
		}
	}

	if errs := config.Validate(p.Config); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
		}
		source := p.ConfigFile
		if source == "" {
			source = "defaults"
		}
		return nil, model.NewCLIError(model.ExitInvalidConfig,
			fmt.Sprintf("invalid configuration (%s): %s", source, strings.Join(msgs, "; ")))
	}

	if p.ConfigFile != "" {
		VerboseLog("Loaded configuration from %s", p.ConfigFile)
	}
	if p.Root != "" {
		VerboseLog("Project root: %s", p.Root)
	}
	return p, nil
}

// translationPath returns the translation directory of the project.
func (p *project) translationPath() string {
	return p.Config.TranslationPath(p.Root)
}

// archivePath returns a fresh archive path <build dir>/<prefix>_<millis>.zip.
// The build directory is the --out flag, or the configured directory
// relative to the working directory.
func (p *project) archivePath(prefix string) string {
	dir := outDir
	if dir == "" {
		dir = p.Config.BuildDir
	}
	return filepath.Join(dir, archiveName(prefix))
}

// archiveName returns <prefix>_<milliseconds since the epoch>.zip.
func archiveName(prefix string) string {
	return fmt.Sprintf("%s_%d.zip", prefix, now().UnixMilli())
}

// Package workcopy manages disposable copies of directory trees.
//
// The beautify pass never edits the translation directory in place. It asks
// a Manager for a working copy inside a fresh temporary directory, rewrites
// files there, and releases the copy once the archive has been written.
//
// Copy and Remove both run on the explicit-stack walker from package tree,
// so arbitrarily deep trees are handled without recursion.
package workcopy

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/shinji-kodama/zhpack/internal/logging"
	"github.com/shinji-kodama/zhpack/internal/model"
	"github.com/shinji-kodama/zhpack/internal/tree"
)

// tempPrefix names the temporary directories created by Create.
const tempPrefix = "zhpack-"

// WorkCopy is a copy of a source directory placed inside its own temporary
// directory.
type WorkCopy struct {
	// Root is the temporary directory that owns the copy. Releasing the
	// copy removes Root.
	Root string

	// Dir is the copied tree, Root/<base name of the source>.
	Dir string
}

// Manager copies and removes trees on a filesystem.
type Manager struct {
	fs afero.Fs

	// Symlinks selects how links inside copied trees are treated.
	Symlinks model.SymlinkPolicy

	// TempDir is the parent of temporary directories made by Create.
	// Empty means the filesystem's default temporary directory.
	TempDir string
}

// NewManager returns a Manager operating on fsys.
func NewManager(fsys afero.Fs) *Manager {
	return &Manager{fs: fsys}
}

// Create copies srcDir into a new temporary directory and returns the copy.
// srcDir must be an existing directory.
func (m *Manager) Create(srcDir string) (*WorkCopy, error) {
	info, err := m.fs.Stat(srcDir)
	if err != nil {
		return nil, model.PreconditionFailed("copy", srcDir, err)
	}
	if !info.IsDir() {
		return nil, model.PreconditionFailed("copy", srcDir, fmt.Errorf("not a directory"))
	}

	root, err := afero.TempDir(m.fs, m.TempDir, tempPrefix)
	if err != nil {
		return nil, model.IOFailure("copy", m.TempDir, fmt.Errorf("failed to create temporary directory: %w", err))
	}

	wc := &WorkCopy{
		Root: root,
		Dir:  filepath.Join(root, filepath.Base(filepath.Clean(srcDir))),
	}
	if err := m.Copy(srcDir, wc.Dir); err != nil {
		_ = m.Remove(root)
		return nil, err
	}

	logger := logging.GetLogger("workcopy")
	logger.Debug().Str("source", srcDir).Str("copy", wc.Dir).Msg("Working copy created")
	return wc, nil
}

// Release removes the temporary directory of wc. A removal failure is
// returned under model.PolicyFail and only logged under model.PolicySkip.
func (m *Manager) Release(wc *WorkCopy, policy model.FailurePolicy) error {
	logger := logging.GetLogger("workcopy")

	if err := m.Remove(wc.Root); err != nil {
		if policy == model.PolicyFail {
			return err
		}
		logger.Warn().Err(err).Str("path", wc.Root).Msg("Failed to remove working copy")
		return nil
	}

	logger.Debug().Str("path", wc.Root).Msg("Working copy removed")
	return nil
}

// Copy copies the tree at src to dst, creating directories as needed and
// overwriting files that already exist. File contents are copied byte for
// byte and file permissions are preserved.
func (m *Manager) Copy(src, dst string) error {
	err := tree.Walk(m.fs, src, tree.Options{Symlinks: m.Symlinks}, func(e tree.Entry) error {
		target := filepath.Join(dst, filepath.FromSlash(e.Rel))

		if e.Info.IsDir() {
			if err := m.fs.MkdirAll(target, 0o755); err != nil {
				return model.IOFailure("copy", target, fmt.Errorf("failed to create directory: %w", err))
			}
			return nil
		}
		if !e.IsRegular() {
			return nil
		}
		return m.copyFile(e.Path, target, e.Info.Mode().Perm())
	})
	if err != nil && model.KindOf(err) == "" {
		return model.IOFailure("copy", src, err)
	}
	return err
}

// copyFile copies a single file from src to dst with the given mode.
func (m *Manager) copyFile(src, dst string, mode os.FileMode) (err error) {
	in, err := m.fs.Open(src)
	if err != nil {
		return model.IOFailure("copy", src, fmt.Errorf("failed to open source file: %w", err))
	}
	defer func() { _ = in.Close() }()

	out, err := m.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return model.IOFailure("copy", dst, fmt.Errorf("failed to create destination file: %w", err))
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = model.IOFailure("copy", dst, cerr)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		return model.IOFailure("copy", src, fmt.Errorf("failed to copy to %s: %w", dst, err))
	}
	return nil
}

// Remove deletes the tree at path. Files and links are removed as they are
// reached, then directories deepest first. Removal keeps going past
// failures and returns all of them joined. A path that does not exist is
// not an error.
func (m *Manager) Remove(path string) error {
	if lst, ok := m.fs.(afero.Lstater); ok {
		// A link given as path is removed itself, never its target.
		if info, _, err := lst.LstatIfPossible(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
			if err := m.fs.Remove(path); err != nil {
				return model.IOFailure("remove", path, err)
			}
			return nil
		}
	}
	if _, err := m.fs.Stat(path); os.IsNotExist(err) {
		return nil
	}

	var (
		errs []error
		dirs []string
	)
	walkErr := tree.Walk(m.fs, path, tree.Options{ReportLinks: true}, func(e tree.Entry) error {
		if e.Info.IsDir() {
			dirs = append(dirs, e.Path)
			return nil
		}
		if err := m.fs.Remove(e.Path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}

	// Parents precede children in walk order.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := m.fs.Remove(dirs[i]); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return model.IOFailure("remove", path, errors.Join(errs...))
	}
	return nil
}

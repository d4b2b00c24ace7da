// Package tree implements the depth-first directory traversal shared by the
// archive, workcopy and beautify packages.
//
// Traversal uses an explicit stack instead of recursion, so the depth of the
// tree never grows the call stack. Children are visited in lexical name order,
// which makes the visit order deterministic for a given filesystem state.
//
// Symbolic links are handled according to a model.SymlinkPolicy: skipped
// entirely, or followed with a visited set of directories so that a link
// cycle is entered at most once.
package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/shinji-kodama/zhpack/internal/logging"
	"github.com/shinji-kodama/zhpack/internal/model"
)

// SkipDir can be returned by a WalkFunc visiting a directory to prevent the
// walk from descending into it.
var SkipDir = fs.SkipDir

// Entry is one node reached by Walk.
type Entry struct {
	// Path is the filesystem path of the node.
	Path string

	// Rel is the forward-slash path relative to the walk root.
	// The root itself has Rel ".".
	Rel string

	// Info describes the node. For a followed symbolic link it describes
	// the link target.
	Info os.FileInfo

	// Link reports whether the node was reached through a symbolic link.
	Link bool
}

// IsRegular reports whether the entry is a regular file.
func (e Entry) IsRegular() bool {
	return e.Info.Mode().IsRegular()
}

// Options controls a walk.
type Options struct {
	// Symlinks selects how symbolic links below the root are treated.
	// The zero value behaves as model.SymlinkSkip.
	Symlinks model.SymlinkPolicy

	// ReportLinks reports symbolic links as leaf entries carrying the
	// link's own FileInfo, without resolving them. It takes precedence
	// over Symlinks. Deletion uses it so that links are removed rather
	// than skipped or followed.
	ReportLinks bool
}

// WalkFunc is called for every entry, parents before children.
// Returning SkipDir from a directory skips its children; any other
// error stops the walk and is returned by Walk.
type WalkFunc func(e Entry) error

// Walk traverses the tree rooted at root depth-first.
//
// The root itself is resolved with Stat, so a root given as a link is
// always entered. Directories that cannot be listed stop the walk with
// an error naming the directory.
func Walk(fsys afero.Fs, root string, opts Options, fn WalkFunc) error {
	logger := logging.GetLogger("tree")

	rootInfo, err := fsys.Stat(root)
	if err != nil {
		return err
	}

	follow := opts.Symlinks == model.SymlinkFollow && !opts.ReportLinks

	stack := []Entry{{Path: root, Rel: ".", Info: rootInfo}}
	var visited []os.FileInfo

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if follow && e.Info.IsDir() {
			if seen(visited, e.Info) {
				logger.Warn().Str("path", e.Path).Msg("Directory already visited, not following link cycle")
				continue
			}
			visited = append(visited, e.Info)
		}

		if err := fn(e); err != nil {
			if errors.Is(err, SkipDir) && e.Info.IsDir() {
				continue
			}
			return err
		}

		if !e.Info.IsDir() {
			continue
		}

		children, err := afero.ReadDir(fsys, e.Path)
		if err != nil {
			return fmt.Errorf("failed to read directory %s: %w", e.Path, err)
		}

		// Push in reverse so the lexically smallest child is popped first.
		for i := len(children) - 1; i >= 0; i-- {
			child := children[i]
			next := Entry{
				Path: filepath.Join(e.Path, child.Name()),
				Rel:  joinRel(e.Rel, child.Name()),
				Info: child,
			}

			if child.Mode()&os.ModeSymlink != 0 {
				switch {
				case opts.ReportLinks:
				case follow:
					target, err := fsys.Stat(next.Path)
					if err != nil {
						logger.Warn().Err(err).Str("path", next.Path).Msg("Skipping dangling symbolic link")
						continue
					}
					next.Info = target
					next.Link = true
				default:
					logger.Debug().Str("path", next.Path).Msg("Skipping symbolic link")
					continue
				}
			}

			stack = append(stack, next)
		}
	}

	return nil
}

// Files returns the regular files below root in walk order.
func Files(fsys afero.Fs, root string, opts Options) ([]Entry, error) {
	var files []Entry
	err := Walk(fsys, root, opts, func(e Entry) error {
		if e.IsRegular() {
			files = append(files, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func joinRel(parent, name string) string {
	if parent == "." {
		return name
	}
	return path.Join(parent, name)
}

func seen(visited []os.FileInfo, info os.FileInfo) bool {
	for _, v := range visited {
		if os.SameFile(v, info) {
			return true
		}
	}
	return false
}

// Package beautify tags Grim Dawn item and relic names with their
// identifiers and packages the result.
//
// A beautify pass never touches the translation directory. It works on a
// copy from package workcopy, rewrites every item file in the copy with a
// RuleSet, archives the copy, and deletes it. A line such as
//
//	tagRelicA123=Sword of Testing
//
// becomes
//
//	tagRelicA123=[A123]Sword of Testing
//
// Lines that already contain a bracket are left alone, so running the pass
// twice changes nothing the second time.
package beautify

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/shinji-kodama/zhpack/internal/archive"
	"github.com/shinji-kodama/zhpack/internal/logging"
	"github.com/shinji-kodama/zhpack/internal/model"
	"github.com/shinji-kodama/zhpack/internal/tree"
	"github.com/shinji-kodama/zhpack/internal/workcopy"
)

// DefaultItemPattern selects the files holding item-name strings.
const DefaultItemPattern = "**/*_items.txt"

// Options controls a beautify pass.
type Options struct {
	// ItemPattern is a doublestar pattern matched against each file's
	// slash-separated path relative to the translation directory.
	// Empty means DefaultItemPattern.
	ItemPattern string

	// Archive is passed to the archiver for the final archive.
	// Archive.Symlinks also governs the working copy.
	Archive archive.Options

	// OnCleanupError selects whether a failure to delete the working copy
	// is returned or only logged. The zero value behaves as
	// model.PolicySkip.
	OnCleanupError model.FailurePolicy

	// KeepWorkCopy leaves the working copy in place for inspection.
	KeepWorkCopy bool

	// TempDir is the parent of the working copy's temporary directory.
	// Empty means the system default.
	TempDir string
}

// Beautifier runs beautify passes on a filesystem.
type Beautifier struct {
	fs       afero.Fs
	archiver *archive.Archiver
	copies   *workcopy.Manager
	opts     Options
}

// New returns a Beautifier operating on fsys.
func New(fsys afero.Fs, opts Options) *Beautifier {
	if opts.ItemPattern == "" {
		opts.ItemPattern = DefaultItemPattern
	}
	copies := workcopy.NewManager(fsys)
	copies.Symlinks = opts.Archive.Symlinks
	copies.TempDir = opts.TempDir

	return &Beautifier{
		fs:       fsys,
		archiver: archive.New(fsys),
		copies:   copies,
		opts:     opts,
	}
}

// Beautify copies translationDir to a working copy, rewrites its item files
// with rules, and archives the copy at archivePath. Entries in the archive
// carry the translation directory's base name as their first segment.
//
// A missing translationDir is a precondition failure. Failures on single
// files are recorded in the report and do not stop the pass; archive
// failures do.
func (b *Beautifier) Beautify(translationDir string, rules *RuleSet, archivePath string) (report *model.Report, err error) {
	logger := logging.GetLogger("beautify")
	done := logging.LogOperationStart(logger, "beautify")
	defer done()

	if !doublestar.ValidatePattern(b.opts.ItemPattern) {
		return nil, model.PreconditionFailed("beautify", b.opts.ItemPattern, fmt.Errorf("invalid item pattern"))
	}

	info, err := b.fs.Stat(translationDir)
	if err != nil {
		return nil, model.PreconditionFailed("beautify", translationDir, err)
	}
	if !info.IsDir() {
		return nil, model.PreconditionFailed("beautify", translationDir, fmt.Errorf("not a directory"))
	}

	wc, err := b.copies.Create(translationDir)
	if err != nil {
		return nil, err
	}
	report = &model.Report{WorkCopy: wc.Dir}

	if !b.opts.KeepWorkCopy {
		defer func() {
			if rerr := b.copies.Release(wc, b.opts.OnCleanupError); rerr != nil && err == nil {
				report, err = nil, rerr
			}
		}()
	} else {
		logger.Info().Str("path", wc.Dir).Msg("Keeping working copy")
	}

	files, err := b.itemFiles(wc.Dir)
	if err != nil {
		return nil, err
	}
	report.FilesMatched = len(files)

	for _, f := range files {
		b.rewrite(f.Path, f.Rel, rules, report)
	}

	path, err := b.archiver.Create(archivePath, []string{wc.Dir}, b.opts.Archive)
	if err != nil {
		return nil, err
	}
	report.Archive = path

	logger.Info().
		Str("archive", path).
		Int("files", len(report.FilesRewritten)).
		Int("lines", report.LinesChanged).
		Int("failures", len(report.Failures)).
		Msg("Beautify complete")
	return report, nil
}

// RewriteFiles rewrites each file in paths in place. Files that are missing
// or cannot be read or written are recorded as failures in the report.
func (b *Beautifier) RewriteFiles(paths []string, rules *RuleSet) *model.Report {
	report := &model.Report{FilesMatched: len(paths)}
	for _, p := range paths {
		b.rewrite(p, p, rules, report)
	}
	return report
}

// itemFiles returns the regular files below dir matching the item pattern.
func (b *Beautifier) itemFiles(dir string) ([]tree.Entry, error) {
	all, err := tree.Files(b.fs, dir, tree.Options{Symlinks: b.opts.Archive.Symlinks})
	if err != nil {
		return nil, model.IOFailure("beautify", dir, err)
	}

	var matched []tree.Entry
	for _, e := range all {
		ok, err := doublestar.Match(b.opts.ItemPattern, e.Rel)
		if err != nil {
			return nil, model.PreconditionFailed("beautify", b.opts.ItemPattern, err)
		}
		if ok {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// rewrite applies rules to one file, recording the outcome under name.
func (b *Beautifier) rewrite(path, name string, rules *RuleSet, report *model.Report) {
	logger := logging.GetLogger("beautify")

	fail := func(kind model.ErrorKind, err error) {
		report.Failures = append(report.Failures, model.FileFailure{Path: name, Kind: kind, Message: err.Error()})
		logger.Warn().Err(err).Str("file", name).Str("kind", kind.String()).Msg("Skipping file")
	}

	data, err := afero.ReadFile(b.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			fail(model.KindMissingSource, err)
		} else {
			fail(model.KindIOFailure, err)
		}
		return
	}
	if !utf8.Valid(data) {
		fail(model.KindIOFailure, fmt.Errorf("%s is not valid UTF-8", filepath.Base(path)))
		return
	}

	text, changed, err := rules.RewriteText(string(data))
	if err != nil {
		fail(model.KindIOFailure, err)
		return
	}

	info, err := b.fs.Stat(path)
	if err != nil {
		fail(model.KindIOFailure, err)
		return
	}
	if err := afero.WriteFile(b.fs, path, []byte(text), info.Mode().Perm()); err != nil {
		fail(model.KindIOFailure, err)
		return
	}

	if changed > 0 {
		report.FilesRewritten = append(report.FilesRewritten, name)
		report.LinesChanged += changed
	}
	logger.Debug().Str("file", name).Int("lines", changed).Msg("Rewrote item file")
}

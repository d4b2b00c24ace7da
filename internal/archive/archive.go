// Package archive packs directory trees into zip archives and extracts them.
//
// Entry names are derived from the containing directories of each file: a
// directory source contributes its own name as the first path segment, and
// each nested directory extends the prefix. Only regular files produce
// entries; directories are implicit in the file paths, so an empty directory
// leaves no trace in the archive.
//
// All filesystem access goes through an afero.Fs, which lets the same code
// run against the OS filesystem and in-memory filesystems in tests.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/shinji-kodama/zhpack/internal/logging"
	"github.com/shinji-kodama/zhpack/internal/model"
	"github.com/shinji-kodama/zhpack/internal/tree"
)

// Options controls archive creation and extraction.
type Options struct {
	// BaseDir is prepended to every entry name on creation. A trailing "/"
	// is added when missing. Empty means no prefix.
	BaseDir string

	// Charset is the entry-name encoding (WHATWG label). Empty means UTF-8.
	Charset string

	// OnMissing selects what happens when a declared source does not
	// exist. The zero value behaves as model.PolicySkip.
	OnMissing model.FailurePolicy

	// Symlinks selects how links inside directory sources are treated.
	// The zero value behaves as model.SymlinkSkip.
	Symlinks model.SymlinkPolicy
}

// Archiver creates and extracts zip archives on a filesystem.
type Archiver struct {
	fs afero.Fs
}

// New returns an Archiver operating on fsys.
func New(fsys afero.Fs) *Archiver {
	return &Archiver{fs: fsys}
}

// NewOS returns an Archiver operating on the OS filesystem.
func NewOS() *Archiver {
	return New(afero.NewOsFs())
}

// Create writes sources into a zip archive at archivePath and returns
// archivePath.
//
// The archive is assembled in a temporary file next to archivePath and
// renamed into place once complete, so a failed Create leaves any existing
// archive at archivePath untouched and no partial archive behind. The parent
// directory is created as needed. Each source is either a regular file,
// stored as BaseDir+<file name>, or a directory, whose regular files are
// stored as BaseDir+<dir name>/<relative path>. Entries appear in walk order
// (depth-first, lexical), each regular file exactly once.
//
// An empty source list, or sources containing no regular files, produce a
// valid archive with zero entries.
func (a *Archiver) Create(archivePath string, sources []string, opts Options) (string, error) {
	if _, err := a.Write(archivePath, sources, opts); err != nil {
		return "", err
	}
	return archivePath, nil
}

// Write is Create returning the entries it stored, in archive order, with
// Source set to the file each entry was read from.
//
// Two different files mapping to the same entry name fail the whole archive
// with an IOFailure. The same file reached twice is stored once.
func (a *Archiver) Write(archivePath string, sources []string, opts Options) (entries []model.ArchiveEntry, err error) {
	logger := logging.GetLogger("archive")
	done := logging.LogOperationStart(logger, "create")
	defer done()

	codec, err := newNameCodec(opts.Charset)
	if err != nil {
		return nil, model.PreconditionFailed("create", archivePath, err)
	}

	dir := filepath.Dir(archivePath)
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, model.IOFailure("create", dir, err)
	}

	tmp, err := afero.TempFile(a.fs, dir, "."+filepath.Base(archivePath)+".*.tmp")
	if err != nil {
		return nil, model.IOFailure("create", archivePath, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if committed {
			return
		}
		_ = tmp.Close()
		if rerr := a.fs.Remove(tmpPath); rerr != nil && !os.IsNotExist(rerr) {
			logger.Warn().Err(rerr).Str("path", tmpPath).Msg("Failed to remove temporary archive")
		}
	}()

	zw := zip.NewWriter(tmp)
	w := &writer{
		fs:      a.fs,
		zw:      zw,
		codec:   codec,
		base:    normalizeBase(opts.BaseDir),
		opts:    opts,
		self:    map[string]bool{absPath(archivePath): true, absPath(tmpPath): true},
		logger:  logger,
		written: make(map[string]string),
	}

	for _, src := range sources {
		if err := w.addSource(src); err != nil {
			_ = zw.Close()
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, model.IOFailure("create", archivePath, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, model.IOFailure("create", archivePath, err)
	}
	if err := a.fs.Chmod(tmpPath, 0o644); err != nil {
		logger.Debug().Err(err).Str("path", tmpPath).Msg("Failed to set archive permissions")
	}
	if err := a.fs.Rename(tmpPath, archivePath); err != nil {
		return nil, model.IOFailure("create", archivePath, err)
	}
	committed = true

	logger.Info().Str("archive", archivePath).Int("entries", len(w.entries)).Msg("Archive created")
	return w.entries, nil
}

// CreateFromDir archives the children of dir, so entry names do not carry
// dir's own name. dir must exist and be a directory.
func (a *Archiver) CreateFromDir(archivePath, dir string, opts Options) (string, error) {
	sources, err := a.DirSources(dir, opts)
	if err != nil {
		return "", err
	}
	return a.Create(archivePath, sources, opts)
}

// DirSources returns the children of dir as Create sources. Links are left
// out unless opts.Symlinks is model.SymlinkFollow.
func (a *Archiver) DirSources(dir string, opts Options) ([]string, error) {
	info, err := a.fs.Stat(dir)
	if err != nil {
		return nil, model.PreconditionFailed("create", dir, err)
	}
	if !info.IsDir() {
		return nil, model.PreconditionFailed("create", dir, fmt.Errorf("not a directory"))
	}

	children, err := afero.ReadDir(a.fs, dir)
	if err != nil {
		return nil, model.IOFailure("create", dir, err)
	}

	sources := make([]string, 0, len(children))
	for _, child := range children {
		if child.Mode()&os.ModeSymlink != 0 && opts.Symlinks != model.SymlinkFollow {
			continue
		}
		sources = append(sources, filepath.Join(dir, child.Name()))
	}
	return sources, nil
}

// writer holds the state of one Create call.
type writer struct {
	fs     afero.Fs
	zw     *zip.Writer
	codec  *nameCodec
	base   string
	opts   Options
	logger zerolog.Logger

	// self holds the absolute paths of the archive and its temporary file.
	self map[string]bool

	// written maps each stored entry name to the absolute path it came from.
	written map[string]string
	entries []model.ArchiveEntry
}

func (w *writer) addSource(src string) error {
	info, err := w.fs.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return w.missing(src, err)
		}
		return model.IOFailure("create", src, err)
	}

	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			w.logger.Debug().Str("path", src).Msg("Skipping non-regular file")
			return nil
		}
		return w.addFile(src, w.base+info.Name(), info)
	}

	prefix := w.base + dirName(src) + "/"
	return tree.Walk(w.fs, src, tree.Options{Symlinks: w.opts.Symlinks}, func(e tree.Entry) error {
		if !e.IsRegular() {
			return nil
		}
		return w.addFile(e.Path, prefix+e.Rel, e.Info)
	})
}

// missing applies the OnMissing policy to a source that does not exist.
func (w *writer) missing(src string, cause error) error {
	if w.opts.OnMissing == model.PolicyFail {
		return model.MissingSource("create", src, cause)
	}
	w.logger.Debug().Str("path", src).Msg("Skipping missing source")
	return nil
}

func (w *writer) addFile(src, name string, info os.FileInfo) error {
	abs := absPath(src)
	if w.self[abs] {
		w.logger.Debug().Str("path", src).Msg("Skipping the archive being written")
		return nil
	}
	if prev, ok := w.written[name]; ok {
		if prev == abs {
			w.logger.Debug().Str("entry", name).Str("path", src).Msg("Skipping file already stored")
			return nil
		}
		return model.IOFailure("create", src, fmt.Errorf("entry %q is also produced by %s", name, prev))
	}

	in, err := w.fs.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return w.missing(src, err)
		}
		return model.IOFailure("create", src, err)
	}
	defer func() { _ = in.Close() }()

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return model.IOFailure("create", src, err)
	}
	encoded, nonUTF8, err := w.codec.encode(name)
	if err != nil {
		return model.IOFailure("create", src, err)
	}
	header.Name = encoded
	header.NonUTF8 = nonUTF8
	header.Method = zip.Deflate

	dst, err := w.zw.CreateHeader(header)
	if err != nil {
		return model.IOFailure("create", name, err)
	}
	n, err := io.Copy(dst, in)
	if err != nil {
		return model.IOFailure("create", src, err)
	}

	w.written[name] = abs
	w.entries = append(w.entries, model.ArchiveEntry{Name: name, Source: src, Size: n})
	w.logger.Trace().Str("entry", name).Str("path", src).Msg("Added entry")
	return nil
}

// absPath returns the cleaned absolute form of p, or its cleaned form when
// the working directory cannot be determined.
func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// normalizeBase returns base in forward-slash form with a trailing "/",
// or "" when base is empty.
func normalizeBase(base string) string {
	base = strings.Trim(filepath.ToSlash(base), "/")
	if base == "" || base == "." {
		return ""
	}
	return base + "/"
}

// dirName returns the name a directory source contributes to entry names.
func dirName(dir string) string {
	name := filepath.Base(filepath.Clean(dir))
	if name == "." || name == string(filepath.Separator) {
		if abs, err := filepath.Abs(dir); err == nil {
			name = filepath.Base(abs)
		}
	}
	return name
}

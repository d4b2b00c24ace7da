package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/zhpack/internal/logging"
	"github.com/shinji-kodama/zhpack/internal/model"
)

// Extract writes every entry of the archive at archivePath below outputDir,
// which is created if absent.
//
// Entry names without the zip UTF-8 flag are decoded with opts.Charset.
// Directory entries create directories; file entries create their parent
// directories and overwrite any existing file. Entries whose names would
// land outside outputDir are rejected.
//
// Failure to open the archive is an IOFailure carrying the archive path;
// failure on an entry is an IOFailure carrying the entry name.
func (a *Archiver) Extract(archivePath, outputDir string, opts Options) error {
	logger := logging.GetLogger("archive")
	done := logging.LogOperationStart(logger, "extract")
	defer done()

	codec, err := newNameCodec(opts.Charset)
	if err != nil {
		return model.PreconditionFailed("extract", archivePath, err)
	}

	zr, closer, err := a.open(archivePath)
	if err != nil {
		return model.IOFailure("extract", archivePath, err)
	}
	defer func() { _ = closer.Close() }()

	if err := a.fs.MkdirAll(outputDir, 0o755); err != nil {
		return model.IOFailure("extract", outputDir, err)
	}

	for _, f := range zr.File {
		name, err := codec.decode(f)
		if err != nil {
			return model.IOFailure("extract", f.Name, err)
		}

		target, err := safeJoin(outputDir, name)
		if err != nil {
			return model.IOFailure("extract", name, err)
		}

		if isDirEntry(f, name) {
			if err := a.fs.MkdirAll(target, 0o755); err != nil {
				return model.IOFailure("extract", name, err)
			}
			continue
		}

		if err := a.extractFile(f, target); err != nil {
			return model.IOFailure("extract", name, err)
		}
		logger.Trace().Str("entry", name).Str("path", target).Msg("Extracted entry")
	}

	logger.Info().Str("archive", archivePath).Str("output", outputDir).Int("entries", len(zr.File)).Msg("Archive extracted")
	return nil
}

// List returns the entries of the archive at archivePath, names decoded
// with charset.
func (a *Archiver) List(archivePath, charset string) ([]model.ArchiveEntry, error) {
	codec, err := newNameCodec(charset)
	if err != nil {
		return nil, model.PreconditionFailed("list", archivePath, err)
	}

	zr, closer, err := a.open(archivePath)
	if err != nil {
		return nil, model.IOFailure("list", archivePath, err)
	}
	defer func() { _ = closer.Close() }()

	entries := make([]model.ArchiveEntry, 0, len(zr.File))
	for _, f := range zr.File {
		name, err := codec.decode(f)
		if err != nil {
			return nil, model.IOFailure("list", f.Name, err)
		}
		dir := isDirEntry(f, name)
		entry := model.ArchiveEntry{Name: name, Dir: dir}
		if !dir {
			entry.Size = int64(f.UncompressedSize64)
		} else if !strings.HasSuffix(entry.Name, "/") {
			entry.Name += "/"
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// open opens the archive for reading. The returned closer releases the
// underlying file.
func (a *Archiver) open(archivePath string) (*zip.Reader, io.Closer, error) {
	f, err := a.fs.Open(archivePath)
	if err != nil {
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%s is a directory", archivePath)
	}

	zr, err := zip.NewReader(f, info.Size())
	// Insecure names are rejected per entry by safeJoin.
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		_ = f.Close()
		return nil, nil, err
	}
	return zr, f, nil
}

func (a *Archiver) extractFile(f *zip.File, target string) (err error) {
	if err := a.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}

	out, err := a.fs.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, rc)
	return err
}

// isDirEntry reports whether a zip entry denotes a directory.
func isDirEntry(f *zip.File, name string) bool {
	return strings.HasSuffix(name, "/") || f.FileInfo().IsDir()
}

// safeJoin resolves an entry name below dir. Backslash separators written
// by legacy Windows tools are accepted. Absolute names, drive letters and
// names escaping dir are rejected.
func safeJoin(dir, name string) (string, error) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if path.IsAbs(slashed) || (len(slashed) >= 2 && slashed[1] == ':') {
		return "", fmt.Errorf("entry name %q is absolute", name)
	}

	clean := path.Clean(slashed)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("entry name %q escapes the output directory", name)
	}
	if clean == "." {
		return dir, nil
	}
	return filepath.Join(dir, filepath.FromSlash(clean)), nil
}

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/zhpack/internal/archive"
	"github.com/shinji-kodama/zhpack/internal/model"
)

// packFlags holds the flag values for the pack command.
type packFlags struct {
	// baseDir is prepended to every entry name.
	baseDir string

	// flat stores the translation directory's children at the archive
	// root instead of under the directory's own name.
	flat bool
}

// NewPackCommand creates the "pack" cobra command.
func NewPackCommand() *cobra.Command {
	flags := &packFlags{}

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Archive the translation directory",
		Long: `Archive the translation directory into <build dir>/ZH_<millis>.zip.

Every regular file becomes one entry named after its path, starting with the
translation directory's own name (e.g. 汉化/text_zh/tags_items.txt).

Examples:
  zhpack pack
  zhpack pack --out dist --base-dir mods/zh
  zhpack pack --flat --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPack(cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.baseDir, "base-dir", "", "Prefix prepended to every entry name")
	cmd.Flags().BoolVar(&flags.flat, "flat", false, "Store the translation files at the archive root")

	return cmd
}

// packResult is the output of the pack command.
type packResult struct {
	Archive string `json:"archive"`
	Source  string `json:"source"`
	Entries int    `json:"entries"`
}

func runPack(w io.Writer, flags *packFlags) error {
	p, err := loadProject(true)
	if err != nil {
		return err
	}

	src := p.translationPath()
	info, err := os.Stat(src)
	if err != nil {
		return model.PreconditionFailed("pack", src, err)
	}
	if !info.IsDir() {
		return model.PreconditionFailed("pack", src, fmt.Errorf("not a directory"))
	}

	opts := p.Config.ArchiveOptions()
	opts.BaseDir = flags.baseDir

	a := archive.NewOS()
	target := p.archivePath(p.Config.ArchivePrefix)
	VerboseLog("Packing %s into %s", src, target)

	sources := []string{src}
	if flags.flat {
		if sources, err = a.DirSources(src, opts); err != nil {
			return err
		}
	}

	entries, err := a.Write(target, sources, opts)
	if err != nil {
		return err
	}
	for _, e := range entries {
		VerboseLog("Stored %s from %s", e.Name, e.Source)
	}

	result := packResult{Archive: target, Source: src, Entries: len(entries)}
	if IsJSONOutput() {
		return printJSON(w, result)
	}
	_, err = fmt.Fprintf(w, "Created %s (%d entries)\n", result.Archive, result.Entries)
	return err
}

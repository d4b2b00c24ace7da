package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/zhpack/internal/archive"
)

// extractFlags holds the flag values for the extract command.
type extractFlags struct {
	// charset decodes entry names lacking the UTF-8 flag. Empty means the
	// configured charset.
	charset string
}

// NewExtractCommand creates the "extract" cobra command.
func NewExtractCommand() *cobra.Command {
	flags := &extractFlags{}

	cmd := &cobra.Command{
		Use:   "extract <archive> <dir>",
		Short: "Extract an archive into a directory",
		Long: `Extract every entry of an archive below a directory, creating it if needed
and overwriting existing files.

Archives written by older Chinese Windows tools store entry names in the
system code page; pass --charset gbk (or gb18030, big5, ...) to read them.

Examples:
  zhpack extract target/ZH_1700000000000.zip /tmp/zh
  zhpack extract old.zip out --charset gbk`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd.OutOrStdout(), args[0], args[1], flags)
		},
	}

	cmd.Flags().StringVar(&flags.charset, "charset", "", "Entry-name charset for archives without UTF-8 names")

	return cmd
}

// extractResult is the output of the extract command.
type extractResult struct {
	Archive string `json:"archive"`
	Output  string `json:"output"`
	Entries int    `json:"entries"`
}

func runExtract(w io.Writer, archivePath, outputDir string, flags *extractFlags) error {
	charset, err := resolveCharset(flags.charset)
	if err != nil {
		return err
	}

	a := archive.NewOS()
	entries, err := a.List(archivePath, charset)
	if err != nil {
		return err
	}

	VerboseLog("Extracting %d entries from %s into %s", len(entries), archivePath, outputDir)
	if err := a.Extract(archivePath, outputDir, archive.Options{Charset: charset}); err != nil {
		return err
	}

	result := extractResult{Archive: archivePath, Output: outputDir, Entries: len(entries)}
	if IsJSONOutput() {
		return printJSON(w, result)
	}
	_, err = fmt.Fprintf(w, "Extracted %d entries into %s\n", result.Entries, result.Output)
	return err
}

// resolveCharset returns flagValue, or the configured charset when the flag
// is empty.
func resolveCharset(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	p, err := loadProject(false)
	if err != nil {
		return "", err
	}
	return p.Config.Charset, nil
}

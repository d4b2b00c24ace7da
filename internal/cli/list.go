// list.go implements the "zhpack list" command.
//
// The list command prints the entries of an archive, decoding legacy entry
// names with --charset, as a text table or JSON array depending on the
// --json flag.

package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/zhpack/internal/archive"
	"github.com/shinji-kodama/zhpack/internal/model"
)

// listFlags holds the flag values for the list command.
type listFlags struct {
	// charset decodes entry names lacking the UTF-8 flag.
	charset string
}

// NewListCommand creates the "list" cobra command.
func NewListCommand() *cobra.Command {
	flags := &listFlags{}

	cmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "List the entries of an archive",
		Long: `List the entries of an archive with their uncompressed sizes.

Examples:
  zhpack list target/ZH_1700000000000.zip
  zhpack list old.zip --charset gbk --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.OutOrStdout(), args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.charset, "charset", "", "Entry-name charset for archives without UTF-8 names")

	return cmd
}

func runList(w io.Writer, archivePath string, flags *listFlags) error {
	charset, err := resolveCharset(flags.charset)
	if err != nil {
		return err
	}

	entries, err := archive.NewOS().List(archivePath, charset)
	if err != nil {
		return err
	}
	VerboseLog("Read %d entries from %s", len(entries), archivePath)

	if IsJSONOutput() {
		return printListResultJSON(w, archivePath, entries)
	}
	return printListResultText(w, entries)
}

// printListResultJSON outputs the entries as structured JSON.
// The top-level key "entries" always holds an array, never null.
func printListResultJSON(w io.Writer, archivePath string, entries []model.ArchiveEntry) error {
	type resultJSON struct {
		Archive string               `json:"archive"`
		Entries []model.ArchiveEntry `json:"entries"`
	}

	result := resultJSON{Archive: archivePath, Entries: entries}
	if result.Entries == nil {
		result.Entries = []model.ArchiveEntry{}
	}
	return printJSON(w, result)
}

// printListResultText outputs the entries as a text table:
//
//	SIZE      NAME
//	1024      汉化/text_zh/tags_items.txt
//	-         汉化/empty/
func printListResultText(w io.Writer, entries []model.ArchiveEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "Archive is empty.")
		return err
	}

	if _, err := fmt.Fprintf(w, "%-10s %s\n", "SIZE", "NAME"); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%-10s %s\n", FormatSize(e), e.Name); err != nil {
			return err
		}
	}
	return nil
}

// FormatSize renders an entry's size for the text table. Directories,
// which carry no content, show "-".
func FormatSize(e model.ArchiveEntry) string {
	if e.Dir {
		return "-"
	}
	return strconv.FormatInt(e.Size, 10)
}

package cli

import (
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/zhpack/internal/beautify"
	"github.com/shinji-kodama/zhpack/internal/model"
)

// NewRewriteCommand creates the "rewrite" cobra command.
func NewRewriteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rewrite <file>...",
		Short: "Tag item names in the given files in place",
		Long: `Rewrite the given item files in place with the active rewrite rules,
without copying or archiving anything. Files are written back with "\n" line
endings.

Files that cannot be read or written are skipped and listed. The command then
exits with status 3 when every skipped file was missing and 2 otherwise.

Examples:
  zhpack rewrite 汉化/text_zh/tags_items.txt
  zhpack rewrite --json work/*_items.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewrite(cmd.OutOrStdout(), args)
		},
	}
}

func runRewrite(w io.Writer, paths []string) error {
	p, err := loadProject(false)
	if err != nil {
		return err
	}

	rules, err := p.Config.RuleSet()
	if err != nil {
		return model.WrapCLIError(model.ExitInvalidConfig, "invalid rewrite rules", err)
	}

	VerboseLog("Rewriting %d files in place", len(paths))
	report := beautify.New(afero.NewOsFs(), p.Config.BeautifyOptions()).RewriteFiles(paths, rules)

	if err := printReport(w, report, false); err != nil {
		return err
	}
	if report.Failed() {
		return skippedFilesError(report)
	}
	return nil
}

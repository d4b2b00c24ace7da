package cli

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/zhpack/internal/beautify"
	"github.com/shinji-kodama/zhpack/internal/model"
)

// beautifyFlags holds the flag values for the beautify command.
type beautifyFlags struct {
	// keepWorkCopy leaves the working copy on disk.
	keepWorkCopy bool

	// strict turns skipped item files into a non-zero exit status.
	strict bool
}

// NewBeautifyCommand creates the "beautify" cobra command.
func NewBeautifyCommand() *cobra.Command {
	flags := &beautifyFlags{}

	cmd := &cobra.Command{
		Use:   "beautify",
		Short: "Tag item names with their identifiers and archive the result",
		Long: `Copy the translation directory, tag item and relic names in every item
file of the copy, and archive the copy into <build dir>/ZH_BEAUTIFY_<millis>.zip.

A line is rewritten by the first rule whose prefix it starts with, unless it
already contains "[" or "]". Run "zhpack rules" to see the active rules.

Item files that cannot be read or written are skipped and listed in the
output; the archive is still written. With --strict the command then exits
with status 3 when every skipped file was missing and 2 otherwise.

Examples:
  zhpack beautify
  zhpack beautify --keep-work-copy -v
  zhpack beautify --strict --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBeautify(cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.keepWorkCopy, "keep-work-copy", false, "Keep the rewritten working copy for inspection")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "Exit non-zero when item files were skipped")

	return cmd
}

func runBeautify(w io.Writer, flags *beautifyFlags) error {
	p, err := loadProject(true)
	if err != nil {
		return err
	}

	rules, err := p.Config.RuleSet()
	if err != nil {
		return model.WrapCLIError(model.ExitInvalidConfig, "invalid rewrite rules", err)
	}

	opts := p.Config.BeautifyOptions()
	opts.KeepWorkCopy = opts.KeepWorkCopy || flags.keepWorkCopy

	target := p.archivePath(p.Config.BeautifyPrefix)
	VerboseLog("Beautifying %s into %s", p.translationPath(), target)

	report, err := beautify.New(afero.NewOsFs(), opts).Beautify(p.translationPath(), rules, target)
	if err != nil {
		return err
	}

	if err := printReport(w, report, opts.KeepWorkCopy); err != nil {
		return err
	}
	if flags.strict && report.Failed() {
		return skippedFilesError(report)
	}
	return nil
}

// printReport outputs a report as JSON or text depending on --json.
func printReport(w io.Writer, report *model.Report, kept bool) error {
	if IsJSONOutput() {
		return printJSON(w, report)
	}
	return printReportText(w, report, kept)
}

// printReportText outputs a report as human-readable text. The archive line
// is left out for reports of in-place rewrites.
func printReportText(w io.Writer, report *model.Report, kept bool) error {
	if report.Archive != "" {
		if _, err := fmt.Fprintf(w, "Created %s\n", report.Archive); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintf(w, "Item files: %d matched, %d rewritten, %d lines changed\n",
		report.FilesMatched, len(report.FilesRewritten), report.LinesChanged)

	if kept {
		_, _ = fmt.Fprintf(w, "Working copy: %s\n", report.WorkCopy)
	}

	if !report.Failed() {
		return nil
	}
	for _, f := range report.Failures {
		_, _ = fmt.Fprintf(w, "Skipped %s (%s): %s\n", f.Path, f.Kind, f.Message)
	}
	_, err := fmt.Fprintf(w, "Warning: %d item files were skipped\n", len(report.Failures))
	return err
}

// skippedFilesError returns the error for a report with failures. It exits
// with ExitMissingSource when every skipped file was missing and with
// ExitIOFailure otherwise.
func skippedFilesError(report *model.Report) error {
	code := model.ExitMissingSource
	for _, f := range report.Failures {
		if f.Kind != model.KindMissingSource {
			code = model.ExitIOFailure
			break
		}
	}
	return model.NewCLIError(code, fmt.Sprintf("%d item files were skipped", len(report.Failures)))
}
